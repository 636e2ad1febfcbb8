package lifecycle

import (
	"context"
	"time"
)

// Registry is the versioned model store consumed by the pipeline.
//
// Contract:
//
//   - versions are append-only and numbered monotonically per model name;
//   - an alias points to at most one version per model name;
//   - SetAlias is an atomic swap: a concurrent GetAlias observes either
//     the previous target or the new one, never an in-between state.
type Registry interface {
	// Register creates a new version of the named model.
	//
	// It always creates a new version, even for an artifact registered
	// before. Deduplication is the caller's business.
	Register(ctx context.Context, modelName string, artifactRef string, meta map[string]string) (ModelVersion, error)

	// GetVersion resolves an exact version, never an alias.
	//
	// Returns error unwrapping to ErrVersionNotFound when absent.
	GetVersion(ctx context.Context, modelName string, version int) (ModelVersion, error)

	// Versions lists all versions of the named model, oldest first.
	Versions(ctx context.Context, modelName string) ([]ModelVersion, error)

	// SetAlias points alias at version, detaching it from any previous
	// target in the same atomic step. Returns the previous target, or
	// nil when the alias was unset.
	SetAlias(ctx context.Context, modelName string, alias string, version int) (previous *int, err error)

	// GetAlias resolves alias to a version number, or nil when unset.
	GetAlias(ctx context.Context, modelName string, alias string) (*int, error)

	// AttachMetrics appends an evaluation outcome to a version.
	// Records are immutable; later evaluations append, never overwrite.
	AttachMetrics(ctx context.Context, record MetricsRecord) (MetricsRecord, error)

	// LatestMetrics returns the most recent metrics record of a version.
	//
	// Returns error unwrapping to ErrNoMetrics when the version was
	// never evaluated.
	LatestMetrics(ctx context.Context, modelName string, version int) (MetricsRecord, error)
}

// NewMetricsRecord stamps an evaluation outcome with its time.
func NewMetricsRecord(modelName string, version int, values map[string]float64, evaluatedAt time.Time) MetricsRecord {
	return MetricsRecord{
		ModelName:   modelName,
		Version:     version,
		Values:      values,
		EvaluatedAt: evaluatedAt,
	}
}
