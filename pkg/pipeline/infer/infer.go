// Package infer scores a batch of rows with the current production
// model and commits the predictions as a single Parquet object.
//
// The production alias is resolved once, before the first row is
// scored. A promotion happening mid-run never splits one output
// between two model versions.
package infer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	writerfile "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/modelyard/modelyard/pkg/lifecycle"
	"github.com/modelyard/modelyard/pkg/model"
	"github.com/modelyard/modelyard/pkg/store"
)

type Params struct {
	ModelName string

	// InputPath is the key of the unlabeled CSV batch to score.
	InputPath string

	// OutputPath is the prefix the prediction table and its manifest
	// are committed under.
	OutputPath string
}

type Result struct {
	Run lifecycle.InferenceRun `json:"run"`
}

func Run(
	ctx context.Context,
	logger *log.Logger,
	volume store.ObjectStore,
	registry lifecycle.Registry,
	p Params,
) (Result, error) {
	run := lifecycle.InferenceRun{
		RunId:     uuid.NewString(),
		InputRef:  p.InputPath,
		ModelName: p.ModelName,
		StartedAt: time.Now(),
		Status:    lifecycle.InferenceRunning,
	}

	// pin the version for the whole batch
	version, err := registry.GetAlias(ctx, p.ModelName, lifecycle.AliasProduction)
	if err != nil {
		return failed(run), err
	}
	if version == nil {
		return failed(run), lifecycle.NoProduction{ModelName: p.ModelName}
	}
	run.ModelVersion = *version
	mv, err := registry.GetVersion(ctx, p.ModelName, *version)
	if err != nil {
		return failed(run), err
	}

	content, err := volume.Get(ctx, mv.ArtifactRef)
	if err != nil {
		return failed(run), lifecycle.BadArtifact{Ref: mv.ArtifactRef, Cause: err}
	}
	scorer, err := model.Decode(content)
	if err != nil {
		return failed(run), lifecycle.BadArtifact{Ref: mv.ArtifactRef, Cause: err}
	}

	input, err := volume.Get(ctx, p.InputPath)
	if err != nil {
		return failed(run), lifecycle.BadEvaluationInput{Ref: p.InputPath, Cause: err}
	}
	samples, err := model.ParseCSV(input, false)
	if err != nil {
		return failed(run), lifecycle.BadEvaluationInput{Ref: p.InputPath, Cause: err}
	}
	if len(samples) == 0 {
		return failed(run), lifecycle.BadEvaluationInput{Ref: p.InputPath}
	}

	prov := provenance{ModelName: p.ModelName, ModelVersion: *version, RunId: run.RunId}
	table, err := predictionTable(scorer, samples, prov)
	if err != nil {
		return failed(run), lifecycle.BadEvaluationInput{Ref: p.InputPath, Cause: err}
	}

	// committed in one Put each: a crashed run leaves no partial table
	outputRef := fmt.Sprintf("%s/run=%s/part-%06d.parquet", p.OutputPath, run.RunId, 0)
	if err := volume.Put(ctx, outputRef, table); err != nil {
		return failed(run), lifecycle.WriteFailed{Path: outputRef, Cause: err}
	}

	run.OutputRef = outputRef
	run.RowCount = len(samples)
	run.CompletedAt = time.Now()
	run.Status = lifecycle.InferenceDone
	manifest, err := json.Marshal(run)
	if err != nil {
		return failed(run), err
	}
	manifestRef := fmt.Sprintf("%s/run=%s/manifest.json", p.OutputPath, run.RunId)
	if err := volume.Put(ctx, manifestRef, manifest); err != nil {
		return failed(run), lifecycle.WriteFailed{Path: manifestRef, Cause: err}
	}

	logger.Printf(
		"scored %d rows of %s with %s version %d into %s",
		run.RowCount, p.InputPath, p.ModelName, *version, outputRef,
	)
	return Result{Run: run}, nil
}

// failed closes the run record as failed. The record still rides in
// the stage result alongside the error, so the scheduler sees which
// run failed even when no manifest was committed.
func failed(run lifecycle.InferenceRun) Result {
	run.CompletedAt = time.Now()
	run.Status = lifecycle.InferenceFailed
	return Result{Run: run}
}

// provenance columns repeated on every output row, so the table stands
// alone: any row names the exact model version which produced it.
type provenance struct {
	ModelName    string
	ModelVersion int
	RunId        string
}

func predictionTable(scorer model.Scorer, samples []model.Sample, prov provenance) ([]byte, error) {
	width := len(samples[0].Features)

	buf := &bytes.Buffer{}
	pfw := writerfile.NewWriterFile(buf)
	pw, err := writer.NewJSONWriter(tableSchema(width), pfw, 4)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for nth, sample := range samples {
		label, err := scorer.Predict(sample.Features)
		if err != nil {
			_ = pw.WriteStop()
			_ = pfw.Close()
			return nil, fmt.Errorf("row %d: %w", nth+1, err)
		}

		row := map[string]any{
			"row":           int64(nth),
			"prediction":    label,
			"model_name":    prov.ModelName,
			"model_version": int64(prov.ModelVersion),
			"run_id":        prov.RunId,
		}
		for i, f := range sample.Features {
			row[fmt.Sprintf("feature_%d", i)] = f
		}
		// JSONWriter.Write only accepts a JSON-encoded string or []byte
		encoded, err := json.Marshal(row)
		if err != nil {
			_ = pw.WriteStop()
			_ = pfw.Close()
			return nil, err
		}
		if err := pw.Write(string(encoded)); err != nil {
			_ = pw.WriteStop()
			_ = pfw.Close()
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = pfw.Close()
		return nil, err
	}
	_ = pfw.Close()

	return buf.Bytes(), nil
}

func tableSchema(width int) string {
	fields := []map[string]string{
		{"Tag": "name=row, type=INT64, repetitiontype=OPTIONAL"},
		{"Tag": "name=prediction, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"},
		{"Tag": "name=model_name, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"},
		{"Tag": "name=model_version, type=INT64, repetitiontype=OPTIONAL"},
		{"Tag": "name=run_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"},
	}
	for i := 0; i < width; i++ {
		fields = append(fields, map[string]string{
			"Tag": fmt.Sprintf("name=feature_%d, type=DOUBLE, repetitiontype=OPTIONAL", i),
		})
	}
	out := map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": fields,
	}
	b, _ := json.Marshal(out)
	return string(b)
}
