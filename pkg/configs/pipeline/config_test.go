package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/modelyard/modelyard/pkg/configs/pipeline"
	"github.com/modelyard/modelyard/pkg/utils/try"
)

func TestConfig(t *testing.T) {
	t.Run("a full config loads from file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "pipeline.yaml")
		content := `
database: postgres://modelyard@localhost:5432/registry
modelName: iris
policyFile: /etc/modelyard/policy.yaml
lake:
  kind: minio
  minio:
    endpointUrl: http://localhost:9000
    accessKeyId: modelyard
    secretAccessKey: secret
    bucket: lake
volume:
  kind: local
  root: /var/lib/modelyard
paths:
  source: records
  volume: records
  checkpoint: checkpoints/ingest.json
  artifact: models/iris/model.json
  evalDataset: datasets/holdout.csv
  input: batches/today.csv
  predictions: predictions
`
		if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}

		cfg := try.To(pipeline.Load(file)).OrFatal(t)

		if cfg.ModelName != "iris" {
			t.Errorf("modelName = %q", cfg.ModelName)
		}
		if cfg.Lake.Kind != pipeline.StoreKindMinio || cfg.Lake.Minio.Bucket != "lake" {
			t.Errorf("lake = %+v", cfg.Lake)
		}
		if cfg.Volume.Kind != pipeline.StoreKindLocal || cfg.Volume.Root != "/var/lib/modelyard" {
			t.Errorf("volume = %+v", cfg.Volume)
		}
		if cfg.Paths.Checkpoint != "checkpoints/ingest.json" {
			t.Errorf("paths = %+v", cfg.Paths)
		}
	})

	t.Run("lake defaults to the volume store when omitted", func(t *testing.T) {
		cfg := pipeline.Config{}
		err := yaml.Unmarshal([]byte(`
database: postgres://modelyard@localhost:5432/registry
modelName: iris
volume:
  kind: local
  root: /var/lib/modelyard
`), &cfg)
		if err != nil {
			t.Fatal(err)
		}

		if cfg.Lake != cfg.Volume {
			t.Errorf("lake = %+v, want the volume store", cfg.Lake)
		}
	})

	for name, content := range map[string]string{
		"missing database": `
modelName: iris
volume: {kind: local, root: /var/lib/modelyard}
`,
		"missing modelName": `
database: postgres://modelyard@localhost:5432/registry
volume: {kind: local, root: /var/lib/modelyard}
`,
		"missing volume": `
database: postgres://modelyard@localhost:5432/registry
modelName: iris
`,
	} {
		t.Run(name+" is rejected", func(t *testing.T) {
			cfg := pipeline.Config{}
			if err := yaml.Unmarshal([]byte(content), &cfg); err == nil {
				t.Error("unmarshalled, unexpectedly")
			}
		})
	}
}

func TestStoreConfig(t *testing.T) {
	for name, content := range map[string]string{
		"unknown kind":             `{kind: s3, root: /tmp}`,
		"local without root":       `{kind: local}`,
		"minio without connection": `{kind: minio}`,
	} {
		t.Run(name+" is rejected", func(t *testing.T) {
			cfg := pipeline.StoreConfig{}
			err := yaml.Unmarshal([]byte(content), &cfg)
			if !errors.Is(err, pipeline.ErrInvalidStore) {
				t.Errorf("got %v, want ErrInvalidStore", err)
			}
		})
	}

	t.Run("a local store config opens a working store", func(t *testing.T) {
		ctx := context.Background()
		cfg := pipeline.StoreConfig{Kind: pipeline.StoreKindLocal, Root: t.TempDir()}

		s := try.To(cfg.Open(ctx)).OrFatal(t)
		if err := s.Put(ctx, "probe", []byte("ok")); err != nil {
			t.Fatal(err)
		}
		got := try.To(s.Get(ctx, "probe")).OrFatal(t)
		if string(got) != "ok" {
			t.Errorf("roundtrip = %q", got)
		}
	})
}
