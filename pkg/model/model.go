// Package model treats trained classifiers as opaque, scorable artifacts.
//
// An artifact is a JSON envelope naming its algorithm plus an
// algorithm-specific spec. The pipeline never looks inside the spec;
// it only decodes an artifact into a Scorer and calls Predict.
package model

import (
	"encoding/json"
	"fmt"
)

// Scorer is what the evaluation and inference stages need from a model.
type Scorer interface {
	// Predict classifies one row of features.
	Predict(features []float64) (label string, err error)
}

type envelope struct {
	Algo string          `json:"algo"`
	Spec json.RawMessage `json:"spec"`
}

type decoder func(spec json.RawMessage) (Scorer, error)

var decoders = map[string]decoder{
	AlgoNearestCentroid: decodeNearestCentroid,
}

// Decode turns artifact bytes into a Scorer.
func Decode(artifact []byte) (Scorer, error) {
	var e envelope
	if err := json.Unmarshal(artifact, &e); err != nil {
		return nil, err
	}
	dec, ok := decoders[e.Algo]
	if !ok {
		return nil, fmt.Errorf("unsupported algorithm: %q", e.Algo)
	}
	return dec(e.Spec)
}

// Encode wraps an algorithm-specific spec into artifact bytes.
func Encode(algo string, spec any) ([]byte, error) {
	rawSpec, err := json.Marshal(spec)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Algo: algo, Spec: rawSpec})
}
