package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/creasty/defaults"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/statsql/pkg/cache"
	"github.com/ethpandaops/statsql/pkg/redshift"
	"github.com/ethpandaops/statsql/pkg/stats"
	"github.com/ethpandaops/statsql/pkg/warmer"
)

// Config is the statsql configuration file
type Config struct {
	// Logging level
	Logging string `yaml:"logging" default:"info"`

	// MetricsAddr serves /metrics while warming; empty disables it
	MetricsAddr string `yaml:"metricsAddr" default:":9090"`

	Redshift redshift.Config `yaml:"redshift"`
	Cache    cache.Config    `yaml:"cache"`
	Stats    stats.Config    `yaml:"stats"`
	Warmer   warmer.Config   `yaml:"warmer"`
}

// Validate checks the sections every command needs. The warehouse section is
// checked when a connection is opened.
func (c *Config) Validate() error {
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	if err := c.Stats.Validate(); err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	if err := c.Warmer.Validate(); err != nil {
		return fmt.Errorf("warmer: %w", err)
	}

	return nil
}

// LoadConfig loads configuration from a YAML file over the defaults
func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	yamlFile, err := os.ReadFile(path) //nolint:gosec // User-provided config file path
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadRequest reads a breakdown request from a YAML file
func LoadRequest(path string) (*stats.Request, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided request file path
	if err != nil {
		return nil, err
	}

	req := &stats.Request{}
	if err := yaml.Unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("failed to parse request %s: %w", path, err)
	}

	return req, nil
}

// loadCommandConfig loads --config and applies its log level. A missing
// default config file falls back to the built-in defaults.
func loadCommandConfig(cmd *cobra.Command) (*Config, error) {
	config, err := LoadConfig(cfgFile)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		config = &Config{}
		if err := defaults.Set(config); err != nil {
			return nil, err
		}

		logger.WithField("path", cfgFile).Debug("No config file, using defaults")
	} else if err != nil {
		return nil, err
	}

	if err := applyLogLevel(cmd, config); err != nil {
		return nil, err
	}

	return config, nil
}
