// Package pipeline holds the stage runner's configuration: which
// stores to talk to, where the registry is, and the model's paths.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/modelyard/modelyard/pkg/store"
	"github.com/modelyard/modelyard/pkg/store/local"
	"github.com/modelyard/modelyard/pkg/store/minio"
)

var ErrInvalidStore = errors.New("store config is invalid")

const (
	StoreKindLocal = "local"
	StoreKindMinio = "minio"
)

// StoreConfig selects and parameterizes one object store.
type StoreConfig struct {
	Kind string

	// Root is the filesystem root. Kind "local" only.
	Root string

	// Minio is the bucket connection. Kind "minio" only.
	Minio *minio.Config
}

func (c *StoreConfig) UnmarshalYAML(node *yaml.Node) error {
	raw := struct {
		Kind  string        `yaml:"kind"`
		Root  string        `yaml:"root"`
		Minio *minio.Config `yaml:"minio"`
	}{}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	switch raw.Kind {
	case StoreKindLocal:
		if raw.Root == "" {
			return fmt.Errorf("%w: local store without root (line %d)", ErrInvalidStore, node.Line)
		}
	case StoreKindMinio:
		if raw.Minio == nil {
			return fmt.Errorf("%w: minio store without connection (line %d)", ErrInvalidStore, node.Line)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q (line %d)", ErrInvalidStore, raw.Kind, node.Line)
	}

	c.Kind, c.Root, c.Minio = raw.Kind, raw.Root, raw.Minio
	return nil
}

// Open builds the configured store. For minio the bucket is created
// when absent.
func (c StoreConfig) Open(ctx context.Context) (store.ObjectStore, error) {
	switch c.Kind {
	case StoreKindLocal:
		return local.New(c.Root)
	case StoreKindMinio:
		s, err := minio.New(*c.Minio)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidStore, c.Kind)
	}
}

// Paths are the keys the stages read and write, relative to their
// store roots.
type Paths struct {
	Source      string `yaml:"source"`
	Volume      string `yaml:"volume"`
	Checkpoint  string `yaml:"checkpoint"`
	Artifact    string `yaml:"artifact"`
	Training    string `yaml:"training"`
	Experiments string `yaml:"experiments"`
	EvalDataset string `yaml:"evalDataset"`
	Input       string `yaml:"input"`
	Predictions string `yaml:"predictions"`
}

type Config struct {
	// Database is the connection string of the model registry.
	Database string

	// ModelName is the model this pipeline instance owns.
	ModelName string

	// PolicyFile is the YAML approval policy, loaded per invocation.
	PolicyFile string

	Lake   StoreConfig
	Volume StoreConfig

	Paths Paths
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	raw := struct {
		Database   string       `yaml:"database"`
		ModelName  string       `yaml:"modelName"`
		PolicyFile string       `yaml:"policyFile"`
		Lake       *StoreConfig `yaml:"lake"`
		Volume     *StoreConfig `yaml:"volume"`
		Paths      Paths        `yaml:"paths"`
	}{}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	if raw.Database == "" {
		return fmt.Errorf("database is required (line %d)", node.Line)
	}
	if raw.ModelName == "" {
		return fmt.Errorf("modelName is required (line %d)", node.Line)
	}
	if raw.Volume == nil {
		return fmt.Errorf("volume store is required (line %d)", node.Line)
	}
	if raw.Lake == nil {
		// a pipeline reading no external lake ingests from the volume
		raw.Lake = raw.Volume
	}

	c.Database = raw.Database
	c.ModelName = raw.ModelName
	c.PolicyFile = raw.PolicyFile
	c.Lake, c.Volume = *raw.Lake, *raw.Volume
	c.Paths = raw.Paths
	return nil
}

// Load loads configuration from the file.
func Load(file string) (Config, error) {
	f, err := os.Open(file)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	cfg := Config{}
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
