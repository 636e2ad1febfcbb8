package lifecycle

import (
	"errors"
	"fmt"
)

// Error taxonomy of the pipeline. Every stage failure unwraps to exactly
// one of these sentinels so that the scheduler/alerting layer can branch
// on error kind.
var (
	ErrIngestionSource = errors.New("ingestion source unreachable")
	ErrIngestionWrite  = errors.New("ingestion write failed")
	ErrCheckpoint      = errors.New("checkpoint unusable")
	ErrArtifact        = errors.New("artifact unreadable")
	ErrRegistry        = errors.New("registry unavailable")
	ErrVersionNotFound = errors.New("model version not found")
	ErrEvaluationInput = errors.New("evaluation input unusable")
	ErrNoMetrics       = errors.New("version has no metrics")
	ErrNoCandidate     = errors.New("no candidate version")
)

// the ingestion source could not be listed or read.
type SourceUnreachable struct {
	Path  string
	Cause error
}

var _ error = SourceUnreachable{}

func (e SourceUnreachable) Error() string {
	return fmt.Sprintf("source %s is unreachable: %s", e.Path, e.Cause)
}

func (e SourceUnreachable) Unwrap() error {
	return ErrIngestionSource
}

// writing an ingestion batch to the volume failed before completion.
type WriteFailed struct {
	Path  string
	Cause error
}

var _ error = WriteFailed{}

func (e WriteFailed) Error() string {
	return fmt.Sprintf("write to %s failed: %s", e.Path, e.Cause)
}

func (e WriteFailed) Unwrap() error {
	return ErrIngestionWrite
}

// the checkpoint record exists but cannot be parsed.
//
// Never repaired automatically. The operator resets it explicitly,
// otherwise re-runs could duplicate or drop data silently.
type BrokenCheckpoint struct {
	Path  string
	Cause error
}

var _ error = BrokenCheckpoint{}

func (e BrokenCheckpoint) Error() string {
	return fmt.Sprintf("checkpoint at %s is broken (reset it explicitly to re-ingest): %s", e.Path, e.Cause)
}

func (e BrokenCheckpoint) Unwrap() error {
	return ErrCheckpoint
}

// the model artifact could not be read or decoded.
type BadArtifact struct {
	Ref   string
	Cause error
}

var _ error = BadArtifact{}

func (e BadArtifact) Error() string {
	return fmt.Sprintf("artifact %s is unusable: %s", e.Ref, e.Cause)
}

func (e BadArtifact) Unwrap() error {
	return ErrArtifact
}

// the registry did not answer. Safe to retry: no durable state advanced.
type RegistryUnavailable struct {
	Cause error
}

var _ error = RegistryUnavailable{}

func (e RegistryUnavailable) Error() string {
	return fmt.Sprintf("registry unavailable: %s", e.Cause)
}

func (e RegistryUnavailable) Unwrap() error {
	return ErrRegistry
}

// the addressed model version does not exist.
type MissingVersion struct {
	ModelName string
	Version   int
}

var _ error = MissingVersion{}

func (e MissingVersion) Error() string {
	return fmt.Sprintf("model %s has no version %d", e.ModelName, e.Version)
}

func (e MissingVersion) Unwrap() error {
	return ErrVersionNotFound
}

// the held-out dataset is empty or malformed.
//
// Terminal: an empty eval set cannot produce a trustworthy metric.
type BadEvaluationInput struct {
	Ref   string
	Cause error
}

var _ error = BadEvaluationInput{}

func (e BadEvaluationInput) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("evaluation dataset %s is empty", e.Ref)
	}
	return fmt.Sprintf("evaluation dataset %s is unusable: %s", e.Ref, e.Cause)
}

func (e BadEvaluationInput) Unwrap() error {
	return ErrEvaluationInput
}

// approval was requested for a version which was never evaluated.
type Unevaluated struct {
	ModelName string
	Version   int
}

var _ error = Unevaluated{}

func (e Unevaluated) Error() string {
	return fmt.Sprintf("model %s version %d has no metrics record", e.ModelName, e.Version)
}

func (e Unevaluated) Unwrap() error {
	return ErrNoMetrics
}

// inference was requested but no version holds the production alias.
type NoProduction struct {
	ModelName string
}

var _ error = NoProduction{}

func (e NoProduction) Error() string {
	return fmt.Sprintf("model %s has no production version", e.ModelName)
}

func (e NoProduction) Unwrap() error {
	return ErrVersionNotFound
}

// promotion was requested but no version holds the candidate alias.
type NoCandidate struct {
	ModelName string
}

var _ error = NoCandidate{}

func (e NoCandidate) Error() string {
	return fmt.Sprintf("model %s has no candidate version", e.ModelName)
}

func (e NoCandidate) Unwrap() error {
	return ErrNoCandidate
}

// Retryable reports whether the scheduler may safely re-invoke the stage.
//
// Only errors caused by external dependency availability are retryable;
// no component advances durable state before its final write, so a retry
// cannot duplicate effects.
func Retryable(err error) bool {
	return errors.Is(err, ErrRegistry) || errors.Is(err, ErrIngestionSource)
}

// Kind names the taxonomy member of err for structured stage results.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrIngestionSource):
		return "IngestionSourceError"
	case errors.Is(err, ErrIngestionWrite):
		return "IngestionWriteError"
	case errors.Is(err, ErrCheckpoint):
		return "CheckpointError"
	case errors.Is(err, ErrArtifact):
		return "ArtifactError"
	case errors.Is(err, ErrRegistry):
		return "RegistryError"
	case errors.Is(err, ErrVersionNotFound):
		return "VersionNotFoundError"
	case errors.Is(err, ErrEvaluationInput):
		return "EvaluationInputError"
	case errors.Is(err, ErrNoMetrics):
		return "NoMetricsError"
	case errors.Is(err, ErrNoCandidate):
		return "NoCandidateError"
	default:
		return "InternalError"
	}
}
