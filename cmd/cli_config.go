package cmd

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/ethpandaops/querycat/pkg/api"
	"github.com/ethpandaops/querycat/pkg/driver"
	"github.com/ethpandaops/querycat/pkg/history"
	"github.com/ethpandaops/querycat/pkg/resolver"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// CLIConfig represents the configuration shared by every command
type CLIConfig struct {
	// Logging level, applied when --log-level is not given
	Logging string `yaml:"logging" default:"warn"`

	// Catalog locations searched in addition to the built-in catalog
	Catalog struct {
		Paths []string `yaml:"paths" default:"[\"./catalogs\"]"`
	} `yaml:"catalog"`

	// Dialect forces a formatter; empty follows the configured driver
	Dialect string `yaml:"dialect"`

	Driver  driver.Config  `yaml:"driver"`
	History history.Config `yaml:"history"`
	API     api.Config     `yaml:"api"`

	// MetricsAddr serves Prometheus metrics during `serve`; empty disables it
	MetricsAddr string `yaml:"metricsAddr" default:":9090"`
}

// Validate validates the CLI configuration. Driver settings are checked only
// by commands that dispatch queries.
func (c *CLIConfig) Validate() error {
	if _, err := logrus.ParseLevel(c.Logging); err != nil {
		return fmt.Errorf("invalid logging level: %w", err)
	}

	if _, err := resolver.FormatterFor(c.Dialect); err != nil {
		return err
	}

	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history config validation failed: %w", err)
	}

	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api config validation failed: %w", err)
	}

	return nil
}

// EffectiveDialect returns the configured dialect, or the one the driver expects
func (c *CLIConfig) EffectiveDialect() string {
	if c.Dialect != "" {
		return c.Dialect
	}

	if c.Driver.Type == driver.TypeSplunk {
		return resolver.DialectSplunk
	}

	return resolver.DialectKQL
}

// LoadCLIConfig loads CLI configuration from a YAML file
func LoadCLIConfig(path string) (*CLIConfig, error) {
	if path == "" {
		path = "querycat.yaml"
	}

	config := &CLIConfig{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	// Try to read the file, but allow it to not exist
	yamlFile, err := os.ReadFile(path) //nolint:gosec // User-provided config file path
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return nil, err
	}

	return config, nil
}
