// Package lifecycle holds the domain model of modelyard:
// registered model versions, their evaluation metrics, lifecycle aliases
// and batch inference runs.
package lifecycle

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelyard/modelyard/pkg/utils/cmp"
)

// Lifecycle aliases. An alias points at most one version per model name.
const (
	AliasCandidate  = "candidate"
	AliasProduction = "production"
)

// ModelVersion is an immutable, registry-assigned snapshot of a trained
// artifact plus its metadata.
//
// Versions are append-only: the registry assigns numbers monotonically
// per model name and never deletes a version.
type ModelVersion struct {
	ModelName    string
	Version      int
	ArtifactRef  string
	RegisteredAt time.Time
	Meta         map[string]string

	// Metrics is the most recent evaluation of this version, if any.
	Metrics *MetricsRecord

	// Aliases currently pointing at this version.
	Aliases []string
}

func (m ModelVersion) Equal(o ModelVersion) bool {
	metricsEq := (m.Metrics == nil) == (o.Metrics == nil)
	if m.Metrics != nil && o.Metrics != nil {
		metricsEq = m.Metrics.Equal(*o.Metrics)
	}
	return m.ModelName == o.ModelName &&
		m.Version == o.Version &&
		m.ArtifactRef == o.ArtifactRef &&
		m.RegisteredAt.Equal(o.RegisteredAt) &&
		cmp.MapEq(m.Meta, o.Meta) &&
		metricsEq &&
		cmp.SliceContentEq(m.Aliases, o.Aliases)
}

// MetricsRecord is one evaluation outcome for a model version.
//
// Immutable once written. A version may accumulate records from
// independent evaluation runs; consumers wanting "the" metrics take
// the most recent one.
type MetricsRecord struct {
	ModelName   string
	Version     int
	Values      map[string]float64
	EvaluatedAt time.Time
}

func (r MetricsRecord) Equal(o MetricsRecord) bool {
	return r.ModelName == o.ModelName &&
		r.Version == o.Version &&
		r.EvaluatedAt.Equal(o.EvaluatedAt) &&
		cmp.MapEq(r.Values, o.Values)
}

type InferenceRunStatus string

const (
	InferenceRunning InferenceRunStatus = "running"
	InferenceDone    InferenceRunStatus = "done"
	InferenceFailed  InferenceRunStatus = "failed"
)

func (s InferenceRunStatus) String() string {
	return string(s)
}

func AsInferenceRunStatus(status string) (InferenceRunStatus, error) {
	switch status {
	case string(InferenceRunning):
		return InferenceRunning, nil
	case string(InferenceDone):
		return InferenceDone, nil
	case string(InferenceFailed):
		return InferenceFailed, nil
	default:
		return "", fmt.Errorf("'%s' is not InferenceRunStatus", status)
	}
}

// UnmarshalJSON rejects statuses outside the known set, so a manifest
// from a newer or corrupted writer fails loudly instead of carrying an
// unknown status downstream.
func (s *InferenceRunStatus) UnmarshalJSON(b []byte) error {
	raw := ""
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := AsInferenceRunStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// InferenceRun records one batch scoring invocation and its provenance:
// which model version produced which output table.
type InferenceRun struct {
	RunId        string
	InputRef     string
	ModelName    string
	ModelVersion int
	OutputRef    string
	RowCount     int
	StartedAt    time.Time
	CompletedAt  time.Time
	Status       InferenceRunStatus
}
