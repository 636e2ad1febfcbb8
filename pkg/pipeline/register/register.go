// Package register obtains a model artifact and records it in the
// registry as a new version.
//
// The artifact is either supplied pre-built or trained in-process from
// ingested data; either way it is validated to decode into a Scorer
// before anything durable happens.
package register

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/modelyard/modelyard/pkg/lifecycle"
	"github.com/modelyard/modelyard/pkg/model"
	"github.com/modelyard/modelyard/pkg/store"
)

type Params struct {
	// ArtifactPath points at a pre-built artifact on the volume.
	// Empty means: train in-process from TrainingPath.
	ArtifactPath string

	// TrainingPath is the prefix of labeled training data, used only
	// when no pre-built artifact is given.
	TrainingPath string

	// ExperimentPath is where the artifact and its metadata are logged
	// before registration.
	ExperimentPath string

	ModelName string
}

func Run(
	ctx context.Context,
	logger *log.Logger,
	volume store.ObjectStore,
	registry lifecycle.Registry,
	p Params,
) (lifecycle.ModelVersion, error) {

	artifact, meta, err := obtainArtifact(ctx, volume, p)
	if err != nil {
		return lifecycle.ModelVersion{}, err
	}

	// registration targets scorable artifacts only
	if _, err := model.Decode(artifact); err != nil {
		ref := p.ArtifactPath
		if ref == "" {
			ref = p.TrainingPath
		}
		return lifecycle.ModelVersion{}, lifecycle.BadArtifact{Ref: ref, Cause: err}
	}

	// log to the experiment store first, then register. The registry
	// entry points back at the logged copy, never at the mutable input.
	experimentId := uuid.NewString()
	artifactRef := path.Join(p.ExperimentPath, "runs", experimentId, "artifact.json")
	if err := volume.Put(ctx, artifactRef, artifact); err != nil {
		return lifecycle.ModelVersion{}, lifecycle.RegistryUnavailable{
			Cause: fmt.Errorf("experiment store write to %s: %w", artifactRef, err),
		}
	}
	metaRef := path.Join(p.ExperimentPath, "runs", experimentId, "metadata.json")
	rawMeta, err := json.Marshal(map[string]any{
		"model_name":    p.ModelName,
		"experiment_id": experimentId,
		"logged_at":     time.Now().Format(time.RFC3339),
		"meta":          meta,
	})
	if err != nil {
		return lifecycle.ModelVersion{}, err
	}
	if err := volume.Put(ctx, metaRef, rawMeta); err != nil {
		return lifecycle.ModelVersion{}, lifecycle.RegistryUnavailable{
			Cause: fmt.Errorf("experiment store write to %s: %w", metaRef, err),
		}
	}

	meta["experiment_id"] = experimentId
	version, err := registry.Register(ctx, p.ModelName, artifactRef, meta)
	if err != nil {
		return lifecycle.ModelVersion{}, err
	}

	logger.Printf(
		"registered %s version %d (experiment %s)",
		version.ModelName, version.Version, experimentId,
	)
	return version, nil
}

func obtainArtifact(
	ctx context.Context, volume store.ObjectStore, p Params,
) (artifact []byte, meta map[string]string, err error) {

	if p.ArtifactPath != "" {
		content, err := volume.Get(ctx, p.ArtifactPath)
		if err != nil {
			return nil, nil, lifecycle.BadArtifact{Ref: p.ArtifactPath, Cause: err}
		}
		return content, map[string]string{
			"source":          "prebuilt",
			"artifact_origin": p.ArtifactPath,
		}, nil
	}

	// in-process training. The algorithm is a black box behind
	// model.Fit; what matters here is that it yields a scorable
	// artifact plus training metadata.
	keys, err := volume.List(ctx, p.TrainingPath)
	if err != nil {
		return nil, nil, lifecycle.BadArtifact{Ref: p.TrainingPath, Cause: err}
	}
	samples := []model.Sample{}
	for _, key := range keys {
		content, err := volume.Get(ctx, key)
		if err != nil {
			return nil, nil, lifecycle.BadArtifact{Ref: key, Cause: err}
		}
		part, err := model.ParseCSV(content, true)
		if err != nil {
			return nil, nil, lifecycle.BadArtifact{Ref: key, Cause: err}
		}
		samples = append(samples, part...)
	}

	fitted, err := model.Fit(samples)
	if err != nil {
		return nil, nil, lifecycle.BadArtifact{Ref: p.TrainingPath, Cause: err}
	}
	artifact, err = model.Encode(model.AlgoNearestCentroid, fitted)
	if err != nil {
		return nil, nil, err
	}

	return artifact, map[string]string{
		"source":          "trained",
		"algo":            model.AlgoNearestCentroid,
		"training_path":   p.TrainingPath,
		"training_rows":   strconv.Itoa(len(samples)),
		"training_shards": strconv.Itoa(len(keys)),
	}, nil
}
