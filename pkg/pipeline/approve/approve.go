// Package approve is the human-configurable gate between evaluation and
// promotion: it applies the declarative threshold policy to a version's
// latest metrics and, on success, moves the candidate alias there.
package approve

import (
	"context"
	"log"

	"github.com/modelyard/modelyard/pkg/lifecycle"
	"github.com/modelyard/modelyard/pkg/policy"
)

type Params struct {
	ModelName string
	Version   int
	Policy    policy.Policy
}

type Result struct {
	ModelName string `json:"model_name"`
	Version   int    `json:"version"`
	Approved  bool   `json:"approved"`

	// Reason identifies the first failing predicate. Set iff rejected.
	Reason *policy.Reason `json:"reason,omitempty"`

	// PreviousCandidate is the version the candidate alias was detached
	// from, when the approval moved it.
	PreviousCandidate *int `json:"previous_candidate,omitempty"`
}

func Run(
	ctx context.Context,
	logger *log.Logger,
	registry lifecycle.Registry,
	p Params,
) (Result, error) {

	// the ordering invariant (no approval without evaluation) is
	// enforced here, not only by the scheduler's stage dependencies
	record, err := registry.LatestMetrics(ctx, p.ModelName, p.Version)
	if err != nil {
		return Result{}, err
	}

	verdict := p.Policy.Evaluate(record.Values)
	if !verdict.Approved {
		logger.Printf(
			"rejected %s version %d: %s",
			p.ModelName, p.Version, verdict.Reason,
		)
		return Result{
			ModelName: p.ModelName,
			Version:   p.Version,
			Approved:  false,
			Reason:    verdict.Reason,
		}, nil
	}

	previous, err := registry.SetAlias(ctx, p.ModelName, lifecycle.AliasCandidate, p.Version)
	if err != nil {
		return Result{}, err
	}

	logger.Printf("approved %s version %d as candidate", p.ModelName, p.Version)
	return Result{
		ModelName:         p.ModelName,
		Version:           p.Version,
		Approved:          true,
		PreviousCandidate: previous,
	}, nil
}
