package warmer

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/ethpandaops/statsql/pkg/stats"
)

// Define static errors
var (
	ErrNoRequests         = errors.New("warmer has no requests")
	ErrRequestNameMissing = errors.New("warmer request needs a name")
	ErrDuplicateRequest   = errors.New("warmer request name repeated")
	ErrInvalidConcurrency = errors.New("warmer concurrency must be positive")
)

// NamedRequest is a breakdown request warmed under a stable name
type NamedRequest struct {
	Name          string `yaml:"name"`
	stats.Request `yaml:",inline"`
}

// Config holds cache warming configuration
type Config struct {
	Enabled     bool           `yaml:"enabled"`
	Schedule    string         `yaml:"schedule" default:"@every 15m"`
	Concurrency int            `yaml:"concurrency" default:"2"`
	RunOnStart  bool           `yaml:"runOnStart" default:"true"`
	Requests    []NamedRequest `yaml:"requests"`
}

// Validate checks if the configuration is valid. Requests without a cache
// name are cached under their own name.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if len(c.Requests) == 0 {
		return ErrNoRequests
	}

	seen := make(map[string]bool, len(c.Requests))

	for i := range c.Requests {
		req := &c.Requests[i]

		if req.Name == "" {
			return fmt.Errorf("%w: request %d", ErrRequestNameMissing, i)
		}

		if seen[req.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateRequest, req.Name)
		}

		seen[req.Name] = true

		if req.CacheName == "" {
			req.CacheName = req.Name
		}
	}

	return nil
}
