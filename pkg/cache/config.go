// Package cache stores query results in redis under content fingerprints
package cache

import (
	"errors"
	"fmt"
	"time"
)

// Define static errors
var (
	ErrAddressRequired = errors.New("redis address is required")
	ErrInvalidTTL      = errors.New("cache ttl must be positive")
)

// Config holds result cache configuration
type Config struct {
	Enabled bool          `yaml:"enabled" default:"false"`
	Address string        `yaml:"address"`
	Prefix  string        `yaml:"prefix" default:"statsql"`
	TTL     time.Duration `yaml:"ttl" default:"1h"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Address == "" {
		return ErrAddressRequired
	}

	if c.TTL <= 0 {
		return ErrInvalidTTL
	}

	return nil
}

// PrefixKey adds the configured prefix to a Redis key
func (c *Config) PrefixKey(key string) string {
	if c.Prefix == "" {
		return key
	}

	return fmt.Sprintf("%s:%s", c.Prefix, key)
}
