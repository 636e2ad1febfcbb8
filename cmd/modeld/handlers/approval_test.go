package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/modelyard/modelyard/cmd/modeld/handlers"
	httptestutil "github.com/modelyard/modelyard/internal/testutils/http"
	"github.com/modelyard/modelyard/pkg/api/types/models"
	"github.com/modelyard/modelyard/pkg/lifecycle"
	"github.com/modelyard/modelyard/pkg/policy"
	"github.com/modelyard/modelyard/pkg/registry/mocks"
	"github.com/modelyard/modelyard/pkg/utils/pointer"
	"github.com/modelyard/modelyard/pkg/utils/try"
)

func TestApproveHandler(t *testing.T) {
	pol := try.To(policy.Unmarshal([]byte(
		"rules:\n  - {metric: accuracy, op: \">=\", threshold: 0.95}",
	))).OrFatal(t)

	invoke := func(reg *mocks.Registry, version string) (error, *httptestutil.Recorded[models.Approval]) {
		e := echo.New()
		c, resprec := httptestutil.Post(e, "/api/models/iris/versions/"+version+"/approval", nil)
		c.SetPath("/api/models/:modelName/versions/:version/approval")
		c.SetParamNames("modelName", "version")
		c.SetParamValues("iris", version)

		if err := handlers.ApproveHandler(silent, reg, pol)(c); err != nil {
			return err, nil
		}
		result := new(models.Approval)
		if err := json.Unmarshal(resprec.Body.Bytes(), result); err != nil {
			return err, nil
		}
		return nil, &httptestutil.Recorded[models.Approval]{
			StatusCode: resprec.Result().StatusCode, Body: *result,
		}
	}

	t.Run("passing metrics respond approved and move the candidate alias", func(t *testing.T) {
		reg := mocks.NewRegistry()
		reg.Impl.LatestMetrics = func(_ context.Context, modelName string, version int) (lifecycle.MetricsRecord, error) {
			return lifecycle.MetricsRecord{
				ModelName: modelName, Version: version,
				Values:      map[string]float64{"accuracy": 0.97},
				EvaluatedAt: time.Now(),
			}, nil
		}
		reg.Impl.SetAlias = func(context.Context, string, string, int) (*int, error) {
			return pointer.Ref(3), nil
		}

		err, recorded := invoke(reg, "5")
		if err != nil {
			t.Fatal(err)
		}
		if recorded.StatusCode != http.StatusOK {
			t.Errorf("status = %d", recorded.StatusCode)
		}
		if !recorded.Body.Approved {
			t.Error("not approved, unexpectedly")
		}
		change := recorded.Body.Candidate
		if change == nil {
			t.Fatal("approval without its alias change")
		}
		if change.Alias != lifecycle.AliasCandidate || change.Version != 5 {
			t.Errorf("alias change = %+v", change)
		}
		if change.PreviousVersion == nil || *change.PreviousVersion != 3 {
			t.Errorf("previous version = %v, want 3", change.PreviousVersion)
		}

		if got := reg.Calls.SetAlias.Times(); got != 1 {
			t.Fatalf("SetAlias called %d times", got)
		}
		if call := reg.Calls.SetAlias[0]; call.Alias != lifecycle.AliasCandidate || call.Version != 5 {
			t.Errorf("SetAlias(%s, %d)", call.Alias, call.Version)
		}
	})

	t.Run("failing metrics respond 200 with the rejection reason", func(t *testing.T) {
		reg := mocks.NewRegistry()
		reg.Impl.LatestMetrics = func(_ context.Context, modelName string, version int) (lifecycle.MetricsRecord, error) {
			return lifecycle.MetricsRecord{
				ModelName: modelName, Version: version,
				Values:      map[string]float64{"accuracy": 0.80},
				EvaluatedAt: time.Now(),
			}, nil
		}

		err, recorded := invoke(reg, "5")
		if err != nil {
			t.Fatal(err)
		}
		if recorded.StatusCode != http.StatusOK {
			t.Errorf("status = %d", recorded.StatusCode)
		}
		if recorded.Body.Approved {
			t.Error("approved, unexpectedly")
		}
		if recorded.Body.Reason == "" {
			t.Fatal("rejection without reason")
		}
		if recorded.Body.Candidate != nil {
			t.Errorf("rejection carries an alias change: %+v", recorded.Body.Candidate)
		}
		if reg.Calls.SetAlias.Times() != 0 {
			t.Error("alias mutated on rejection")
		}
	})

	t.Run("an unevaluated version is 409", func(t *testing.T) {
		reg := mocks.NewRegistry()
		reg.Impl.LatestMetrics = func(_ context.Context, modelName string, version int) (lifecycle.MetricsRecord, error) {
			return lifecycle.MetricsRecord{}, lifecycle.Unevaluated{ModelName: modelName, Version: version}
		}

		err, _ := invoke(reg, "5")
		if got := statusOf(err); got != http.StatusConflict {
			t.Errorf("status = %d (err = %v)", got, err)
		}
	})

	t.Run("a missing version is 404", func(t *testing.T) {
		reg := mocks.NewRegistry()
		reg.Impl.LatestMetrics = func(_ context.Context, modelName string, version int) (lifecycle.MetricsRecord, error) {
			return lifecycle.MetricsRecord{}, lifecycle.MissingVersion{ModelName: modelName, Version: version}
		}

		err, _ := invoke(reg, "42")
		if got := statusOf(err); got != http.StatusNotFound {
			t.Errorf("status = %d (err = %v)", got, err)
		}
	})
}

func TestPromoteHandler(t *testing.T) {
	invoke := func(reg *mocks.Registry) (error, *httptestutil.Recorded[models.AliasChange]) {
		e := echo.New()
		c, resprec := httptestutil.Post(e, "/api/models/iris/promotion", nil)
		c.SetPath("/api/models/:modelName/promotion")
		c.SetParamNames("modelName")
		c.SetParamValues("iris")

		if err := handlers.PromoteHandler(silent, reg)(c); err != nil {
			return err, nil
		}
		result := new(models.AliasChange)
		if err := json.Unmarshal(resprec.Body.Bytes(), result); err != nil {
			return err, nil
		}
		return nil, &httptestutil.Recorded[models.AliasChange]{
			StatusCode: resprec.Result().StatusCode, Body: *result,
		}
	}

	t.Run("it promotes the candidate to production", func(t *testing.T) {
		reg := mocks.NewRegistry()
		reg.Impl.GetAlias = func(context.Context, string, string) (*int, error) {
			return pointer.Ref(5), nil
		}
		reg.Impl.SetAlias = func(context.Context, string, string, int) (*int, error) {
			return pointer.Ref(3), nil
		}

		err, recorded := invoke(reg)
		if err != nil {
			t.Fatal(err)
		}
		if recorded.StatusCode != http.StatusOK {
			t.Errorf("status = %d", recorded.StatusCode)
		}
		if recorded.Body.Alias != lifecycle.AliasProduction || recorded.Body.Version != 5 {
			t.Errorf("alias change = %+v", recorded.Body)
		}
		if recorded.Body.PreviousVersion == nil || *recorded.Body.PreviousVersion != 3 {
			t.Errorf("previous version = %v, want 3", recorded.Body.PreviousVersion)
		}
		if call := reg.Calls.SetAlias[0]; call.Alias != lifecycle.AliasProduction {
			t.Errorf("SetAlias(%s)", call.Alias)
		}
	})

	t.Run("promotion without a candidate is 409", func(t *testing.T) {
		reg := mocks.NewRegistry()
		reg.Impl.GetAlias = func(context.Context, string, string) (*int, error) {
			return nil, nil
		}

		err, _ := invoke(reg)
		if got := statusOf(err); got != http.StatusConflict {
			t.Errorf("status = %d (err = %v)", got, err)
		}
	})

	t.Run("a registry outage is 503", func(t *testing.T) {
		reg := mocks.NewRegistry()
		reg.Impl.GetAlias = func(context.Context, string, string) (*int, error) {
			return nil, lifecycle.RegistryUnavailable{Cause: errors.New("connection refused")}
		}

		err, _ := invoke(reg)
		if got := statusOf(err); got != http.StatusServiceUnavailable {
			t.Errorf("status = %d (err = %v)", got, err)
		}
	})
}
