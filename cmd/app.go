package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/statsql/pkg/cache"
	"github.com/ethpandaops/statsql/pkg/redshift"
	"github.com/ethpandaops/statsql/pkg/stats"
)

// app holds the wired components behind the query and warm commands
type app struct {
	pool    redshift.Pool
	redis   interface{ Close() error }
	service *stats.Service
}

func newService(log logrus.FieldLogger, cfg *Config, exec stats.Executor) (*stats.Service, error) {
	reg, err := stats.LoadTemplates(log, cfg.Stats.TemplateDirs)
	if err != nil {
		return nil, err
	}

	model, err := stats.NewContentAdStatsModel(reg)
	if err != nil {
		return nil, err
	}

	return stats.NewService(log, model, reg, exec, &cfg.Stats)
}

func newApp(ctx context.Context, log logrus.FieldLogger, cfg *Config) (*app, error) {
	pool, err := redshift.Connect(ctx, log, &cfg.Redshift)
	if err != nil {
		return nil, err
	}

	a := &app{pool: pool}

	var store redshift.ResultStore

	if cfg.Cache.Enabled {
		client := cache.NewClient(&cfg.Cache)
		if err := client.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Result cache unreachable, continuing without it until it recovers")
		}

		a.redis = client
		store = cache.New(log, client, &cfg.Cache)
	}

	service, err := newService(log, cfg, redshift.NewClient(log, pool, store, &cfg.Redshift))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create stats service: %w", err)
	}

	a.service = service

	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}

	a.pool.Close()
}
