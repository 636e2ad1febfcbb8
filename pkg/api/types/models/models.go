// Package models defines the operator API's JSON representation of
// registry entities.
package models

import (
	"time"

	"github.com/modelyard/modelyard/pkg/lifecycle"
	"github.com/modelyard/modelyard/pkg/utils/cmp"
)

// Detail is one model version as the API presents it.
type Detail struct {
	ModelName    string             `json:"modelName"`
	Version      int                `json:"version"`
	ArtifactRef  string             `json:"artifactRef"`
	RegisteredAt time.Time          `json:"registeredAt"`
	Meta         map[string]string  `json:"meta,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	Aliases      []string           `json:"aliases,omitempty"`
}

func ComposeDetail(mv lifecycle.ModelVersion) Detail {
	d := Detail{
		ModelName:    mv.ModelName,
		Version:      mv.Version,
		ArtifactRef:  mv.ArtifactRef,
		RegisteredAt: mv.RegisteredAt,
		Meta:         mv.Meta,
		Aliases:      mv.Aliases,
	}
	if mv.Metrics != nil {
		d.Metrics = mv.Metrics.Values
	}
	return d
}

func (d Detail) Equal(o Detail) bool {
	return d.ModelName == o.ModelName &&
		d.Version == o.Version &&
		d.ArtifactRef == o.ArtifactRef &&
		d.RegisteredAt.Equal(o.RegisteredAt) &&
		cmp.MapEq(d.Meta, o.Meta) &&
		cmp.MapEq(d.Metrics, o.Metrics) &&
		cmp.SliceEq(d.Aliases, o.Aliases)
}

// Alias is an alias resolution: which version the alias points at now.
type Alias struct {
	ModelName string `json:"modelName"`
	Alias     string `json:"alias"`
	Version   int    `json:"version"`
}

// AliasChange is the outcome of an alias move.
type AliasChange struct {
	ModelName       string `json:"modelName"`
	Alias           string `json:"alias"`
	Version         int    `json:"version"`
	PreviousVersion *int   `json:"previousVersion,omitempty"`
}

// Approval is the outcome of a policy check on one version.
type Approval struct {
	ModelName string `json:"modelName"`
	Version   int    `json:"version"`
	Approved  bool   `json:"approved"`

	// Reason is the first failing predicate, set on rejection only.
	Reason string `json:"reason,omitempty"`

	// Candidate is the alias move performed on approval.
	Candidate *AliasChange `json:"candidate,omitempty"`
}
