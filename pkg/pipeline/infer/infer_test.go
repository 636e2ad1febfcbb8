package infer_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/modelyard/modelyard/pkg/lifecycle"
	"github.com/modelyard/modelyard/pkg/model"
	"github.com/modelyard/modelyard/pkg/pipeline/infer"
	"github.com/modelyard/modelyard/pkg/registry/mocks"
	"github.com/modelyard/modelyard/pkg/store/local"
	"github.com/modelyard/modelyard/pkg/utils/pointer"
	"github.com/modelyard/modelyard/pkg/utils/try"
)

var silent = log.New(io.Discard, "", 0)

func params() infer.Params {
	return infer.Params{
		ModelName:  "iris",
		InputPath:  "volume/batches/0001.csv",
		OutputPath: "volume/predictions",
	}
}

// artifact builds a nearest-centroid model over 2 features whose
// prediction is "a" near the origin and "b" near (10, 10).
func artifact(t *testing.T) []byte {
	t.Helper()
	m := try.To(model.Fit([]model.Sample{
		{Features: []float64{0, 0}, Label: "a"},
		{Features: []float64{1, 1}, Label: "a"},
		{Features: []float64{9, 9}, Label: "b"},
		{Features: []float64{11, 11}, Label: "b"},
	})).OrFatal(t)
	return try.To(model.Encode(model.AlgoNearestCentroid, m)).OrFatal(t)
}

func registryWith(version int, artifactRef string) *mocks.Registry {
	reg := mocks.NewRegistry()
	reg.Impl.GetAlias = func(_ context.Context, modelName, alias string) (*int, error) {
		return pointer.Ref(version), nil
	}
	reg.Impl.GetVersion = func(_ context.Context, modelName string, v int) (lifecycle.ModelVersion, error) {
		return lifecycle.ModelVersion{
			ModelName: modelName, Version: v,
			ArtifactRef:  artifactRef,
			RegisteredAt: time.Now(),
		}, nil
	}
	return reg
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("predictions are committed as one parquet object with a manifest", func(t *testing.T) {
		volume := try.To(local.New(t.TempDir())).OrFatal(t)
		if err := volume.Put(ctx, "volume/models/iris/3", artifact(t)); err != nil {
			t.Fatal(err)
		}
		if err := volume.Put(ctx, params().InputPath, []byte("0.5,0.5\n10,10\n0,1\n")); err != nil {
			t.Fatal(err)
		}
		reg := registryWith(3, "volume/models/iris/3")

		result := try.To(infer.Run(ctx, silent, volume, reg, params())).OrFatal(t)

		run := result.Run
		if run.ModelName != "iris" || run.ModelVersion != 3 {
			t.Errorf("provenance = %s version %d", run.ModelName, run.ModelVersion)
		}
		if run.RowCount != 3 {
			t.Errorf("row count = %d, want 3", run.RowCount)
		}
		if run.Status != lifecycle.InferenceDone {
			t.Errorf("status = %s", run.Status)
		}
		if !strings.HasSuffix(run.OutputRef, "part-000000.parquet") {
			t.Errorf("output ref = %q", run.OutputRef)
		}

		table := try.To(volume.Get(ctx, run.OutputRef)).OrFatal(t)
		if len(table) == 0 {
			t.Error("output table is empty")
		}

		keys := try.To(volume.List(ctx, "volume/predictions/")).OrFatal(t)
		if len(keys) != 2 {
			t.Errorf("prediction prefix holds %v, want table and manifest", keys)
		}
		manifestKey := "volume/predictions/run=" + run.RunId + "/manifest.json"
		manifest := try.To(volume.Get(ctx, manifestKey)).OrFatal(t)
		recorded := lifecycle.InferenceRun{}
		if err := json.Unmarshal(manifest, &recorded); err != nil {
			t.Fatal(err)
		}
		if recorded.InputRef != params().InputPath || recorded.ModelVersion != 3 {
			t.Errorf("manifest = %+v", recorded)
		}
	})

	t.Run("the version is pinned before scoring and survives a mid-run promotion", func(t *testing.T) {
		volume := try.To(local.New(t.TempDir())).OrFatal(t)
		if err := volume.Put(ctx, "volume/models/iris/3", artifact(t)); err != nil {
			t.Fatal(err)
		}
		if err := volume.Put(ctx, params().InputPath, []byte("0,0\n")); err != nil {
			t.Fatal(err)
		}

		reg := mocks.NewRegistry()
		production := 3
		reg.Impl.GetAlias = func(_ context.Context, modelName, alias string) (*int, error) {
			resolved := production
			production = 4 // the next resolution would see a promotion
			return &resolved, nil
		}
		reg.Impl.GetVersion = func(_ context.Context, modelName string, v int) (lifecycle.ModelVersion, error) {
			if v != 3 {
				t.Errorf("artifact fetched for version %d, want pinned 3", v)
			}
			return lifecycle.ModelVersion{
				ModelName: modelName, Version: v,
				ArtifactRef:  "volume/models/iris/3",
				RegisteredAt: time.Now(),
			}, nil
		}

		result := try.To(infer.Run(ctx, silent, volume, reg, params())).OrFatal(t)

		if result.Run.ModelVersion != 3 {
			t.Errorf("provenance names version %d, want pinned 3", result.Run.ModelVersion)
		}
		if reg.Calls.GetAlias.Times() != 1 {
			t.Errorf("alias resolved %d times, want once", reg.Calls.GetAlias.Times())
		}
	})

	t.Run("no production alias is a VersionNotFoundError", func(t *testing.T) {
		volume := try.To(local.New(t.TempDir())).OrFatal(t)
		reg := mocks.NewRegistry()
		reg.Impl.GetAlias = func(_ context.Context, modelName, alias string) (*int, error) {
			return nil, nil
		}

		result, err := infer.Run(ctx, silent, volume, reg, params())

		if !errors.Is(err, lifecycle.ErrVersionNotFound) {
			t.Errorf("got %v, want ErrVersionNotFound", err)
		}
		if result.Run.Status != lifecycle.InferenceFailed {
			t.Errorf("run status = %s, want failed", result.Run.Status)
		}
		if result.Run.RunId == "" || result.Run.CompletedAt.IsZero() {
			t.Errorf("failed run record is incomplete: %+v", result.Run)
		}
	})

	t.Run("an unreadable input batch is an EvaluationInputError", func(t *testing.T) {
		volume := try.To(local.New(t.TempDir())).OrFatal(t)
		if err := volume.Put(ctx, "volume/models/iris/3", artifact(t)); err != nil {
			t.Fatal(err)
		}
		reg := registryWith(3, "volume/models/iris/3")

		_, err := infer.Run(ctx, silent, volume, reg, params())

		if !errors.Is(err, lifecycle.ErrEvaluationInput) {
			t.Errorf("got %v, want ErrEvaluationInput", err)
		}
	})

	t.Run("a row with the wrong feature width commits nothing", func(t *testing.T) {
		volume := try.To(local.New(t.TempDir())).OrFatal(t)
		if err := volume.Put(ctx, "volume/models/iris/3", artifact(t)); err != nil {
			t.Fatal(err)
		}
		if err := volume.Put(ctx, params().InputPath, []byte("0,0\n1,2,3\n")); err != nil {
			t.Fatal(err)
		}
		reg := registryWith(3, "volume/models/iris/3")

		_, err := infer.Run(ctx, silent, volume, reg, params())

		if !errors.Is(err, lifecycle.ErrEvaluationInput) {
			t.Errorf("got %v, want ErrEvaluationInput", err)
		}
		keys := try.To(volume.List(ctx, "volume/predictions/")).OrFatal(t)
		if len(keys) != 0 {
			t.Errorf("partial output committed: %v", keys)
		}
	})

	t.Run("a corrupt artifact is an ArtifactError", func(t *testing.T) {
		volume := try.To(local.New(t.TempDir())).OrFatal(t)
		if err := volume.Put(ctx, "volume/models/iris/3", []byte("not a model")); err != nil {
			t.Fatal(err)
		}
		if err := volume.Put(ctx, params().InputPath, []byte("0,0\n")); err != nil {
			t.Fatal(err)
		}
		reg := registryWith(3, "volume/models/iris/3")

		result, err := infer.Run(ctx, silent, volume, reg, params())

		if !errors.Is(err, lifecycle.ErrArtifact) {
			t.Errorf("got %v, want ErrArtifact", err)
		}
		if result.Run.Status != lifecycle.InferenceFailed {
			t.Errorf("run status = %s, want failed", result.Run.Status)
		}
		if result.Run.ModelVersion != 3 {
			t.Errorf("failed run pinned version %d, want 3", result.Run.ModelVersion)
		}
	})
}
