package redshift

import (
	"time"
)

// Config contains warehouse connection settings
type Config struct {
	URL             string        `yaml:"url"`
	ApplicationName string        `yaml:"applicationName" default:"statsql"`
	MaxConns        int32         `yaml:"maxConns" default:"10"`
	MinConns        int32         `yaml:"minConns"`
	MaxConnLifetime time.Duration `yaml:"maxConnLifetime" default:"30m"`
	QueryTimeout    time.Duration `yaml:"queryTimeout" default:"5m"`
	InsertBatchSize int           `yaml:"insertBatchSize" default:"1000"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrURLRequired
	}

	if c.MaxConns < 0 || c.MinConns < 0 || (c.MaxConns > 0 && c.MinConns > c.MaxConns) {
		return ErrInvalidPoolSize
	}

	return nil
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 5 * time.Minute
	}

	if c.InsertBatchSize == 0 {
		c.InsertBatchSize = 1000
	}

	if c.ApplicationName == "" {
		c.ApplicationName = "statsql"
	}
}
