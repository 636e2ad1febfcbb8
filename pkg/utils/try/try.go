package try

// something having method `Fatal`, like *testing.T or log.Logger.
type Fataler interface {
	Fatal(...any)
}

// Either wraps a pair of (T, error).
//
// When the error is nil the Either is "ok" and the T value is valid.
type Either[T any] interface {
	// Get returns the wrapped pair as-is.
	Get() (T, error)

	// OrFatal returns the value when ok.
	//
	// Otherwise it calls ftl.Fatal(err).
	// If ftl has a Helper() method (like *testing.T), that is called first.
	OrFatal(ftl Fataler) T

	// OrDefault returns the value when ok, or the given default.
	OrDefault(T) T
}

func To[T any](ok T, ng error) Either[T] {
	if ng == nil {
		return tryOk[T]{ok}
	}
	return tryNg[T]{ng}
}

type tryOk[T any] struct {
	value T
}

type tryNg[T any] struct {
	err error
}

func (ok tryOk[T]) Get() (T, error) { return ok.value, nil }

func (ng tryNg[T]) Get() (T, error) { return *new(T), ng.err }

func (ok tryOk[T]) OrDefault(T) T { return ok.value }

func (ng tryNg[T]) OrDefault(d T) T { return d }

func (ok tryOk[T]) OrFatal(Fataler) T { return ok.value }

func (ng tryNg[T]) OrFatal(ftl Fataler) T {
	if hlp, ok := ftl.(interface{ Helper() }); ok {
		hlp.Helper()
	}
	ftl.Fatal(ng.err)
	return *new(T)
}
