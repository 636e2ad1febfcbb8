package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/modelyard/modelyard/pkg/api/types/errors"
	"github.com/modelyard/modelyard/pkg/api/types/models"
	"github.com/modelyard/modelyard/pkg/lifecycle"
	"github.com/modelyard/modelyard/pkg/pipeline/approve"
	"github.com/modelyard/modelyard/pkg/pipeline/promote"
	"github.com/modelyard/modelyard/pkg/policy"
)

// ApproveHandler applies the loaded policy to a version's latest
// metrics, exactly like the scheduled approval stage does.
//
// A rejection is a regular outcome, not an error: the response is 200
// with approved=false and the failing predicate.
func ApproveHandler(logger *log.Logger, registry lifecycle.Registry, pol policy.Policy) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		modelName := c.Param("modelName")
		version, herr := versionParam(c, "version")
		if herr != nil {
			return herr
		}

		result, err := approve.Run(ctx, logger, registry, approve.Params{
			ModelName: modelName,
			Version:   version,
			Policy:    pol,
		})
		if err != nil {
			if errors.Is(err, lifecycle.ErrNoMetrics) {
				return apierr.Conflict(
					"version has no metrics",
					apierr.WithAdvice("evaluate it before requesting approval"),
					apierr.WithError(err),
				)
			}
			return translate(err)
		}

		approval := models.Approval{
			ModelName: result.ModelName,
			Version:   result.Version,
			Approved:  result.Approved,
		}
		if result.Reason != nil {
			approval.Reason = result.Reason.String()
		}
		if result.Approved {
			approval.Candidate = &models.AliasChange{
				ModelName:       result.ModelName,
				Alias:           lifecycle.AliasCandidate,
				Version:         result.Version,
				PreviousVersion: result.PreviousCandidate,
			}
		}
		return c.JSON(http.StatusOK, approval)
	}
}

// PromoteHandler moves the production alias to the current candidate.
func PromoteHandler(logger *log.Logger, registry lifecycle.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		modelName := c.Param("modelName")

		result, err := promote.Run(ctx, logger, registry, promote.Params{
			ModelName: modelName,
		})
		if err != nil {
			if errors.Is(err, lifecycle.ErrNoCandidate) {
				return apierr.Conflict(
					"no candidate to promote",
					apierr.WithAdvice("approve a version before promoting"),
					apierr.WithError(err),
				)
			}
			return translate(err)
		}
		return c.JSON(http.StatusOK, models.AliasChange{
			ModelName:       result.ModelName,
			Alias:           lifecycle.AliasProduction,
			Version:         result.PromotedVersion,
			PreviousVersion: result.PreviousVersion,
		})
	}
}
