package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// AlgoNearestCentroid names the bundled stand-in algorithm: classify a
// row as the class whose feature-space centroid is nearest.
const AlgoNearestCentroid = "nearest-centroid"

type NearestCentroid struct {
	// Centroids maps class label to the mean feature vector of its
	// training samples. All vectors share one dimensionality.
	Centroids map[string][]float64 `json:"centroids"`
}

var _ Scorer = &NearestCentroid{}

func (m *NearestCentroid) Predict(features []float64) (string, error) {
	if len(m.Centroids) == 0 {
		return "", fmt.Errorf("model has no centroids")
	}

	// iterate in stable order so that exact ties break deterministically
	labels := make([]string, 0, len(m.Centroids))
	for label := range m.Centroids {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	best, bestDist := "", math.Inf(1)
	for _, label := range labels {
		centroid := m.Centroids[label]
		if len(centroid) != len(features) {
			return "", fmt.Errorf(
				"feature width %d does not match model width %d",
				len(features), len(centroid),
			)
		}
		dist := 0.0
		for i := range centroid {
			d := features[i] - centroid[i]
			dist += d * d
		}
		if dist < bestDist {
			best, bestDist = label, dist
		}
	}
	return best, nil
}

// Fit trains a NearestCentroid on labeled samples.
func Fit(samples []Sample) (*NearestCentroid, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no training samples")
	}

	width := len(samples[0].Features)
	sums := map[string][]float64{}
	counts := map[string]int{}
	for nth, s := range samples {
		if len(s.Features) != width {
			return nil, fmt.Errorf(
				"sample %d has %d features, others have %d",
				nth, len(s.Features), width,
			)
		}
		if _, ok := sums[s.Label]; !ok {
			sums[s.Label] = make([]float64, width)
		}
		for i, f := range s.Features {
			sums[s.Label][i] += f
		}
		counts[s.Label] += 1
	}

	centroids := make(map[string][]float64, len(sums))
	for label, sum := range sums {
		centroid := make([]float64, width)
		for i := range sum {
			centroid[i] = sum[i] / float64(counts[label])
		}
		centroids[label] = centroid
	}
	return &NearestCentroid{Centroids: centroids}, nil
}

func decodeNearestCentroid(spec json.RawMessage) (Scorer, error) {
	m := &NearestCentroid{}
	if err := json.Unmarshal(spec, m); err != nil {
		return nil, err
	}
	if len(m.Centroids) == 0 {
		return nil, fmt.Errorf("artifact has no centroids")
	}
	return m, nil
}
