package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelyard/modelyard/pkg/configs/pipeline"
	"github.com/modelyard/modelyard/pkg/lifecycle"
	"github.com/modelyard/modelyard/pkg/pipeline/approve"
	"github.com/modelyard/modelyard/pkg/pipeline/evaluate"
	"github.com/modelyard/modelyard/pkg/pipeline/infer"
	"github.com/modelyard/modelyard/pkg/pipeline/ingest"
	"github.com/modelyard/modelyard/pkg/pipeline/promote"
	"github.com/modelyard/modelyard/pkg/pipeline/register"
	"github.com/modelyard/modelyard/pkg/policy"
	registries "github.com/modelyard/modelyard/pkg/registry/postgres"
)

// stageResult is the machine-readable record written to stdout for the
// scheduler, one line per invocation.
type stageResult struct {
	Stage     string `json:"stage"`
	Ok        bool   `json:"ok"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func main() {
	stage := flag.String("stage", "", "stage to run. ingest|register|evaluate|approve|promote|infer")
	configPath := flag.String("config-path", os.Getenv("MODELYARD_CONFIG"), "pipeline config path")
	version := flag.Int("version", 0, "model version. evaluate and approve only")
	flag.Parse()

	logger := log.New(os.Stderr, fmt.Sprintf("modelyard[%s] ", *stage), log.LstdFlags)

	if *configPath == "" {
		logger.Fatal("config-path (or MODELYARD_CONFIG) is required")
	}
	conf, err := pipeline.Load(*configPath)
	if err != nil {
		logger.Fatalf("can not read configuration: %s", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := run(ctx, logger, conf, *stage, *version)

	record := stageResult{Stage: *stage, Ok: err == nil, Result: result}
	if err != nil {
		record.Error = err.Error()
		record.ErrorKind = lifecycle.Kind(err)
		record.Retryable = lifecycle.Retryable(err)
	}
	if err := json.NewEncoder(os.Stdout).Encode(record); err != nil {
		logger.Fatalf("can not write result: %s", err)
	}
	if !record.Ok {
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	logger *log.Logger,
	conf pipeline.Config,
	stage string,
	version int,
) (any, error) {

	volume, err := conf.Volume.Open(ctx)
	if err != nil {
		return nil, err
	}

	switch stage {
	case "ingest":
		lake, err := conf.Lake.Open(ctx)
		if err != nil {
			return nil, err
		}
		return ingest.Run(ctx, logger, lake, volume, ingest.Params{
			SourcePath:     conf.Paths.Source,
			VolumePath:     conf.Paths.Volume,
			CheckpointPath: conf.Paths.Checkpoint,
		})

	case "register":
		registry, err := registries.New(ctx, conf.Database)
		if err != nil {
			return nil, err
		}
		defer registry.Close()
		if err := registry.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return register.Run(ctx, logger, volume, registry, register.Params{
			ModelName:      conf.ModelName,
			ArtifactPath:   conf.Paths.Artifact,
			TrainingPath:   conf.Paths.Training,
			ExperimentPath: conf.Paths.Experiments,
		})

	case "evaluate":
		if version == 0 {
			return nil, fmt.Errorf("evaluate requires -version")
		}
		registry, err := registries.New(ctx, conf.Database)
		if err != nil {
			return nil, err
		}
		defer registry.Close()
		return evaluate.Run(ctx, logger, volume, registry, evaluate.Params{
			ModelName:   conf.ModelName,
			Version:     version,
			DatasetPath: conf.Paths.EvalDataset,
		})

	case "approve":
		if version == 0 {
			return nil, fmt.Errorf("approve requires -version")
		}
		pol, err := policy.Load(conf.PolicyFile)
		if err != nil {
			return nil, err
		}
		registry, err := registries.New(ctx, conf.Database)
		if err != nil {
			return nil, err
		}
		defer registry.Close()
		return approve.Run(ctx, logger, registry, approve.Params{
			ModelName: conf.ModelName,
			Version:   version,
			Policy:    pol,
		})

	case "promote":
		registry, err := registries.New(ctx, conf.Database)
		if err != nil {
			return nil, err
		}
		defer registry.Close()
		return promote.Run(ctx, logger, registry, promote.Params{
			ModelName: conf.ModelName,
		})

	case "infer":
		registry, err := registries.New(ctx, conf.Database)
		if err != nil {
			return nil, err
		}
		defer registry.Close()
		return infer.Run(ctx, logger, volume, registry, infer.Params{
			ModelName:  conf.ModelName,
			InputPath:  conf.Paths.Input,
			OutputPath: conf.Paths.Predictions,
		})

	default:
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
}
