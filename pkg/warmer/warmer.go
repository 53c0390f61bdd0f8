// Package warmer keeps the result cache populated by re-running configured
// breakdown requests on a cron schedule.
package warmer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/statsql/pkg/observability"
	"github.com/ethpandaops/statsql/pkg/redshift"
	"github.com/ethpandaops/statsql/pkg/stats"
)

// Runner executes a request past the cache and stores the fresh result
type Runner interface {
	QueryFresh(ctx context.Context, req *stats.Request) (*redshift.Result, error)
}

// Summary reports the outcome of one warming run
type Summary struct {
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Warmer runs the configured requests on schedule
type Warmer struct {
	log    logrus.FieldLogger
	runner Runner
	cfg    *Config

	mu      sync.Mutex
	cron    *cron.Cron
	running atomic.Bool
}

// New validates cfg and returns a warmer
func New(log logrus.FieldLogger, runner Runner, cfg *Config) (*Warmer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Warmer{
		log:    log.WithField("component", "warmer"),
		runner: runner,
		cfg:    cfg,
	}, nil
}

// Start schedules warming runs until ctx is done or Stop is called
func (w *Warmer) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cron != nil {
		return nil
	}

	c := cron.New()

	if _, err := c.AddFunc(w.cfg.Schedule, func() { w.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule warmer: %w", err)
	}

	c.Start()
	w.cron = c

	w.log.WithFields(logrus.Fields{
		"schedule": w.cfg.Schedule,
		"requests": len(w.cfg.Requests),
	}).Info("Started cache warmer")

	if w.cfg.RunOnStart {
		go w.RunOnce(ctx)
	}

	return nil
}

// Stop stops scheduling and waits for a run in progress to finish
func (w *Warmer) Stop() {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()

	if c == nil {
		return
	}

	<-c.Stop().Done()

	w.log.Info("Stopped cache warmer")
}

// RunOnce refreshes every configured request. Failures are logged and
// counted; they never stop the other requests. A run that starts while
// another is still going is skipped.
func (w *Warmer) RunOnce(ctx context.Context) Summary {
	if !w.running.CompareAndSwap(false, true) {
		w.log.Warn("Previous warming run still in progress, skipping")
		return Summary{}
	}
	defer w.running.Store(false)

	start := time.Now()

	var succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)

	for i := range w.cfg.Requests {
		req := w.cfg.Requests[i]

		g.Go(func() error {
			log := w.log.WithField("request", req.Name)

			result, err := w.runner.QueryFresh(gctx, &req.Request)
			if err != nil {
				failed.Add(1)
				observability.RecordWarmerRun(req.Name, observability.StatusError)
				log.WithError(err).Error("Failed to warm request")

				return nil
			}

			succeeded.Add(1)
			observability.RecordWarmerRun(req.Name, observability.StatusSuccess)
			log.WithField("rows", result.Len()).Debug("Warmed request")

			return nil
		})
	}

	_ = g.Wait()

	summary := Summary{
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Duration:  time.Since(start),
	}

	w.log.WithFields(logrus.Fields{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"duration":  summary.Duration,
	}).Info("Cache warming run complete")

	return summary
}
