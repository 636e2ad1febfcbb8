// Package server holds the operator API daemon's configuration.
package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Port the API listens on.
	Port int32

	// Database is the connection string of the model registry.
	Database string

	// TokenSecret signs and verifies operator bearer tokens. When
	// empty, the OPERATOR_TOKEN_SECRET environment variable is used.
	TokenSecret string

	// PolicyFile is the YAML approval policy. The daemon exits when
	// the file changes so the scheduler restarts it with the new
	// policy loaded.
	PolicyFile string
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	raw := struct {
		Port        int32  `yaml:"port"`
		Database    string `yaml:"database"`
		TokenSecret string `yaml:"tokenSecret"`
		PolicyFile  string `yaml:"policyFile"`
	}{}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	if raw.Port == 0 {
		raw.Port = 8080
	}
	if raw.Database == "" {
		return fmt.Errorf("database is required (line %d)", node.Line)
	}
	if raw.TokenSecret == "" {
		raw.TokenSecret = os.Getenv("OPERATOR_TOKEN_SECRET")
	}
	if raw.TokenSecret == "" {
		return fmt.Errorf("tokenSecret (or OPERATOR_TOKEN_SECRET) is required (line %d)", node.Line)
	}
	if raw.PolicyFile == "" {
		return fmt.Errorf("policyFile is required (line %d)", node.Line)
	}

	c.Port = raw.Port
	c.Database = raw.Database
	c.TokenSecret = raw.TokenSecret
	c.PolicyFile = raw.PolicyFile
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
