package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apierr "github.com/modelyard/modelyard/pkg/api/types/errors"
	apimodels "github.com/modelyard/modelyard/pkg/api/types/models"
	"github.com/modelyard/modelyard/pkg/lifecycle"
)

// translate maps registry failures onto HTTP statuses shared by all
// handlers.
func translate(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, lifecycle.ErrVersionNotFound):
		return apierr.NotFound()
	case errors.Is(err, lifecycle.ErrRegistry):
		return apierr.ServiceUnavailable("try again later", err)
	default:
		return apierr.InternalServerError(err)
	}
}

func versionParam(c echo.Context, paramKey string) (int, *echo.HTTPError) {
	version, err := strconv.Atoi(c.Param(paramKey))
	if err != nil || version <= 0 {
		return 0, apierr.BadRequest("version should be a positive integer", err)
	}
	return version, nil
}

// GetVersionsHandler lists every version of a model, newest last.
func GetVersionsHandler(registry lifecycle.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		modelName := c.Param("modelName")

		versions, err := registry.Versions(ctx, modelName)
		if err != nil {
			return translate(err)
		}

		details := make([]apimodels.Detail, 0, len(versions))
		for _, mv := range versions {
			details = append(details, apimodels.ComposeDetail(mv))
		}
		return c.JSON(http.StatusOK, details)
	}
}

// GetVersionHandler shows one version with its latest metrics and
// aliases.
func GetVersionHandler(registry lifecycle.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		modelName := c.Param("modelName")
		version, herr := versionParam(c, "version")
		if herr != nil {
			return herr
		}

		mv, err := registry.GetVersion(ctx, modelName, version)
		if err != nil {
			return translate(err)
		}
		return c.JSON(http.StatusOK, apimodels.ComposeDetail(mv))
	}
}

// GetAliasHandler resolves an alias to the version it points at.
// An unset alias is 404: pointing nowhere is not an internal fault.
func GetAliasHandler(registry lifecycle.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		modelName := c.Param("modelName")
		alias := c.Param("alias")

		version, err := registry.GetAlias(ctx, modelName, alias)
		if err != nil {
			return translate(err)
		}
		if version == nil {
			return apierr.NotFound()
		}
		return c.JSON(http.StatusOK, apimodels.Alias{
			ModelName: modelName,
			Alias:     alias,
			Version:   *version,
		})
	}
}
