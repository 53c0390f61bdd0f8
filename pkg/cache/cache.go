package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ResultCache stores encoded query results keyed by fingerprint
type ResultCache struct {
	log    logrus.FieldLogger
	client *redis.Client
	cfg    *Config
}

// New creates a result cache over an existing redis client
func New(log logrus.FieldLogger, client *redis.Client, cfg *Config) *ResultCache {
	return &ResultCache{
		log:    log.WithField("component", "cache"),
		client: client,
		cfg:    cfg,
	}
}

// NewClient creates a redis client for cfg.Address, which may be a
// redis:// URL or a plain host:port.
func NewClient(cfg *Config) *redis.Client {
	opts, err := redis.ParseURL(cfg.Address)
	if err != nil {
		opts = &redis.Options{Addr: cfg.Address}
	}

	return redis.NewClient(opts)
}

func (c *ResultCache) key(fingerprint string) string {
	return c.cfg.PrefixKey("result:" + fingerprint)
}

// Get returns the stored payload and whether it was found
func (c *ResultCache) Get(ctx context.Context, fingerprint string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.key(fingerprint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // Cache miss
		}

		return nil, false, fmt.Errorf("failed to read cached result: %w", err)
	}

	return data, true, nil
}

// Set stores payload with the configured TTL
func (c *ResultCache) Set(ctx context.Context, fingerprint string, payload []byte) error {
	if err := c.client.Set(ctx, c.key(fingerprint), payload, c.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("failed to store cached result: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"fingerprint": fingerprint,
		"bytes":       len(payload),
		"ttl":         c.cfg.TTL,
	}).Debug("Stored query result")

	return nil
}

// Invalidate removes a stored result
func (c *ResultCache) Invalidate(ctx context.Context, fingerprint string) error {
	return c.client.Del(ctx, c.key(fingerprint)).Err()
}
