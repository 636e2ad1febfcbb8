// Package evaluate scores a registered model version against a held-out
// dataset and attaches the outcome to the version.
//
// Evaluation always targets an exact version, never an alias, so the
// produced metrics are reproducible against a fixed artifact.
package evaluate

import (
	"context"
	"log"
	"time"

	"github.com/modelyard/modelyard/pkg/lifecycle"
	"github.com/modelyard/modelyard/pkg/model"
	"github.com/modelyard/modelyard/pkg/store"
)

type Params struct {
	ModelName string
	Version   int

	// DatasetPath locates the labeled held-out dataset on the volume.
	DatasetPath string
}

// The metric set is fixed across runs for comparability:
// "accuracy" plus "precision:<class>" and "recall:<class>" per class
// present in the held-out dataset.
const (
	MetricAccuracy        = "accuracy"
	MetricPrefixPrecision = "precision:"
	MetricPrefixRecall    = "recall:"
)

func Run(
	ctx context.Context,
	logger *log.Logger,
	volume store.ObjectStore,
	registry lifecycle.Registry,
	p Params,
) (lifecycle.MetricsRecord, error) {

	version, err := registry.GetVersion(ctx, p.ModelName, p.Version)
	if err != nil {
		return lifecycle.MetricsRecord{}, err
	}

	artifact, err := volume.Get(ctx, version.ArtifactRef)
	if err != nil {
		return lifecycle.MetricsRecord{}, lifecycle.BadArtifact{Ref: version.ArtifactRef, Cause: err}
	}
	scorer, err := model.Decode(artifact)
	if err != nil {
		return lifecycle.MetricsRecord{}, lifecycle.BadArtifact{Ref: version.ArtifactRef, Cause: err}
	}

	content, err := volume.Get(ctx, p.DatasetPath)
	if err != nil {
		return lifecycle.MetricsRecord{}, lifecycle.BadEvaluationInput{Ref: p.DatasetPath, Cause: err}
	}
	samples, err := model.ParseCSV(content, true)
	if err != nil {
		return lifecycle.MetricsRecord{}, lifecycle.BadEvaluationInput{Ref: p.DatasetPath, Cause: err}
	}
	if len(samples) == 0 {
		return lifecycle.MetricsRecord{}, lifecycle.BadEvaluationInput{Ref: p.DatasetPath}
	}

	values, err := score(scorer, samples)
	if err != nil {
		return lifecycle.MetricsRecord{}, lifecycle.BadEvaluationInput{Ref: p.DatasetPath, Cause: err}
	}

	record, err := registry.AttachMetrics(ctx, lifecycle.NewMetricsRecord(
		p.ModelName, p.Version, values, time.Now(),
	))
	if err != nil {
		return lifecycle.MetricsRecord{}, err
	}

	logger.Printf(
		"evaluated %s version %d over %d rows: accuracy %.4f",
		p.ModelName, p.Version, len(samples), values[MetricAccuracy],
	)
	return record, nil
}

func score(scorer model.Scorer, samples []model.Sample) (map[string]float64, error) {
	correct := 0
	truePos := map[string]int{}   // label -> correctly predicted
	predicted := map[string]int{} // label -> predicted at all
	actual := map[string]int{}    // label -> present in dataset
	for _, s := range samples {
		got, err := scorer.Predict(s.Features)
		if err != nil {
			return nil, err
		}
		predicted[got] += 1
		actual[s.Label] += 1
		if got == s.Label {
			correct += 1
			truePos[s.Label] += 1
		}
	}

	values := map[string]float64{
		MetricAccuracy: float64(correct) / float64(len(samples)),
	}
	for label, total := range actual {
		values[MetricPrefixRecall+label] = float64(truePos[label]) / float64(total)
		precision := 0.0
		if predicted[label] > 0 {
			precision = float64(truePos[label]) / float64(predicted[label])
		}
		values[MetricPrefixPrecision+label] = precision
	}
	return values, nil
}
