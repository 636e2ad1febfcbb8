// Error wrapper which remembers where it was created.
//
// Usage:
//
//	wrapped := xe.Wrap(err)
//
// `wrapped` carries the file, line and function name of the callsite,
// and its message chains them with " <- " so that reading a log line
// left-to-right follows the propagation path top-down.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

type TracedError struct {
	file string
	line int
	fn   string
	note string
	err  error
}

var _ error = &TracedError{}

func (e *TracedError) File() string { return e.file }

func (e *TracedError) Line() int { return e.line }

func (e *TracedError) Error() string {
	if e.note == "" {
		return fmt.Sprintf(`@ %s "%s" l%d <- %s`, e.fn, e.file, e.line, e.err.Error())
	}
	return fmt.Sprintf(`@ %s "%s" l%d (%s) <- %s`, e.fn, e.file, e.line, e.note, e.err.Error())
}

func (e *TracedError) Unwrap() error { return e.err }

// New creates a new error with the callsite recorded.
func New(text string) error {
	return trace("", errors.New(text), 1)
}

// Wrap marks err with the callsite of Wrap itself.
func Wrap(err error) error {
	return trace("", err, 1)
}

// WrapWithNote is Wrap with a short remark shown in the message.
func WrapWithNote(note string, err error) error {
	return trace(note, err, 1)
}

func trace(note string, err error, depth int) error {
	pc, file, line, ok := runtime.Caller(depth + 1)
	if !ok {
		file, line = "?", -1
	}
	fn := "(unknown func)"
	if f := runtime.FuncForPC(pc); f != nil {
		fn = f.Name()
	}

	return &TracedError{file: file, line: line, fn: fn, note: note, err: err}
}
