// Package promote flips the production alias to the current candidate.
//
// Promotion never names a version directly. It resolves whatever the
// candidate alias points at and promotes that, so the approval gate is
// the only place a version number enters the release path.
package promote

import (
	"context"
	"log"

	"github.com/modelyard/modelyard/pkg/lifecycle"
)

type Params struct {
	ModelName string
}

type Result struct {
	ModelName       string `json:"model_name"`
	PromotedVersion int    `json:"promoted_version"`

	// PreviousVersion is the version production was detached from.
	// Nil on the first promotion of a model.
	PreviousVersion *int `json:"previous_version,omitempty"`
}

func Run(
	ctx context.Context,
	logger *log.Logger,
	registry lifecycle.Registry,
	p Params,
) (Result, error) {

	candidate, err := registry.GetAlias(ctx, p.ModelName, lifecycle.AliasCandidate)
	if err != nil {
		return Result{}, err
	}
	if candidate == nil {
		return Result{}, lifecycle.NoCandidate{ModelName: p.ModelName}
	}

	previous, err := registry.SetAlias(ctx, p.ModelName, lifecycle.AliasProduction, *candidate)
	if err != nil {
		return Result{}, err
	}

	if previous != nil {
		logger.Printf(
			"promoted %s version %d to production (was %d)",
			p.ModelName, *candidate, *previous,
		)
	} else {
		logger.Printf("promoted %s version %d to production", p.ModelName, *candidate)
	}
	return Result{
		ModelName:       p.ModelName,
		PromotedVersion: *candidate,
		PreviousVersion: previous,
	}, nil
}
