package evaluate_test

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"strings"
	"testing"

	"github.com/modelyard/modelyard/pkg/lifecycle"
	"github.com/modelyard/modelyard/pkg/model"
	"github.com/modelyard/modelyard/pkg/pipeline/evaluate"
	"github.com/modelyard/modelyard/pkg/registry/mocks"
	"github.com/modelyard/modelyard/pkg/store/local"
	"github.com/modelyard/modelyard/pkg/utils/try"
)

var silent = log.New(io.Discard, "", 0)

// a model which labels x<2.5 as "a" and the rest as "b"
func artifact(t *testing.T) []byte {
	t.Helper()
	return try.To(model.Encode(model.AlgoNearestCentroid, &model.NearestCentroid{
		Centroids: map[string][]float64{"a": {0}, "b": {5}},
	})).OrFatal(t)
}

func registryWith(t *testing.T, artifactRef string) *mocks.Registry {
	t.Helper()
	reg := mocks.NewRegistry()
	reg.Impl.GetVersion = func(_ context.Context, modelName string, version int) (lifecycle.ModelVersion, error) {
		return lifecycle.ModelVersion{
			ModelName: modelName, Version: version, ArtifactRef: artifactRef,
		}, nil
	}
	reg.Impl.AttachMetrics = func(_ context.Context, record lifecycle.MetricsRecord) (lifecycle.MetricsRecord, error) {
		return record, nil
	}
	return reg
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("metrics are computed over the held-out set and attached", func(t *testing.T) {
		volume := try.To(local.New(t.TempDir())).OrFatal(t)
		if err := volume.Put(ctx, "models/iris.json", artifact(t)); err != nil {
			t.Fatal(err)
		}
		heldout := strings.Join([]string{
			"0.0,a", // predicted a, correct
			"1.0,a", // predicted a, correct
			"2.0,b", // predicted a, wrong
			"5.0,b", // predicted b, correct
		}, "\n")
		if err := volume.Put(ctx, "volume/eval.csv", []byte(heldout)); err != nil {
			t.Fatal(err)
		}
		reg := registryWith(t, "models/iris.json")

		record := try.To(evaluate.Run(ctx, silent, volume, reg, evaluate.Params{
			ModelName: "iris", Version: 5, DatasetPath: "volume/eval.csv",
		})).OrFatal(t)

		for metric, want := range map[string]float64{
			"accuracy":    0.75,
			"precision:a": 2.0 / 3.0,
			"recall:a":    1.0,
			"precision:b": 1.0,
			"recall:b":    0.5,
		} {
			if got := record.Values[metric]; math.Abs(got-want) > 1e-9 {
				t.Errorf("%s = %v, want %v", metric, got, want)
			}
		}

		if reg.Calls.AttachMetrics.Times() != 1 {
			t.Fatalf("AttachMetrics called %d times", reg.Calls.AttachMetrics.Times())
		}
		attached := reg.Calls.AttachMetrics[0]
		if attached.ModelName != "iris" || attached.Version != 5 {
			t.Errorf("attached to %s/%d", attached.ModelName, attached.Version)
		}
		if attached.EvaluatedAt.IsZero() {
			t.Error("metrics record is not timestamped")
		}
	})

	t.Run("an unknown version is a VersionNotFoundError", func(t *testing.T) {
		volume := try.To(local.New(t.TempDir())).OrFatal(t)
		reg := mocks.NewRegistry()
		reg.Impl.GetVersion = func(_ context.Context, modelName string, version int) (lifecycle.ModelVersion, error) {
			return lifecycle.ModelVersion{}, lifecycle.MissingVersion{ModelName: modelName, Version: version}
		}

		_, err := evaluate.Run(ctx, silent, volume, reg, evaluate.Params{
			ModelName: "iris", Version: 99, DatasetPath: "volume/eval.csv",
		})

		if !errors.Is(err, lifecycle.ErrVersionNotFound) {
			t.Errorf("got %v, want ErrVersionNotFound", err)
		}
	})

	t.Run("an empty dataset is a terminal EvaluationInputError", func(t *testing.T) {
		volume := try.To(local.New(t.TempDir())).OrFatal(t)
		if err := volume.Put(ctx, "models/iris.json", artifact(t)); err != nil {
			t.Fatal(err)
		}
		if err := volume.Put(ctx, "volume/eval.csv", []byte("")); err != nil {
			t.Fatal(err)
		}
		reg := registryWith(t, "models/iris.json")

		_, err := evaluate.Run(ctx, silent, volume, reg, evaluate.Params{
			ModelName: "iris", Version: 5, DatasetPath: "volume/eval.csv",
		})

		if !errors.Is(err, lifecycle.ErrEvaluationInput) {
			t.Errorf("got %v, want ErrEvaluationInput", err)
		}
		if lifecycle.Retryable(err) {
			t.Error("empty dataset must not be retryable")
		}
		if reg.Calls.AttachMetrics.Times() != 0 {
			t.Error("metrics attached despite empty dataset")
		}
	})

	t.Run("a missing artifact is an ArtifactError", func(t *testing.T) {
		volume := try.To(local.New(t.TempDir())).OrFatal(t)
		reg := registryWith(t, "models/absent.json")

		_, err := evaluate.Run(ctx, silent, volume, reg, evaluate.Params{
			ModelName: "iris", Version: 5, DatasetPath: "volume/eval.csv",
		})

		if !errors.Is(err, lifecycle.ErrArtifact) {
			t.Errorf("got %v, want ErrArtifact", err)
		}
	})
}
