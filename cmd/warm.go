package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/statsql/pkg/observability"
	"github.com/ethpandaops/statsql/pkg/warmer"
)

// Define static errors
var (
	ErrWarmerDisabled = errors.New("warmer is not enabled in config")
	ErrWarmFailed     = errors.New("some requests failed to warm")
)

//nolint:gochecknoglobals // Cobra flags are typically global
var warmOnce bool

//nolint:gochecknoglobals // Cobra commands are typically global
var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Keep the result cache warm",
	Long:  `Re-run the configured breakdown requests on schedule so their results stay cached.`,
	RunE:  runWarm,
}

func init() {
	rootCmd.AddCommand(warmCmd)
	warmCmd.Flags().BoolVar(&warmOnce, "once", false, "run every request once and exit")
}

func runWarm(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	config, err := loadCommandConfig(cmd)
	if err != nil {
		return err
	}

	if !config.Warmer.Enabled {
		return ErrWarmerDisabled
	}

	if !config.Cache.Enabled {
		logger.Warn("Result cache is disabled, warming runs will not be kept")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, logger, config)
	if err != nil {
		return err
	}
	defer a.Close()

	w, err := warmer.New(logger, a.service, &config.Warmer)
	if err != nil {
		return err
	}

	if warmOnce {
		summary := w.RunOnce(ctx)
		if summary.Failed > 0 {
			return fmt.Errorf("%w: %d of %d", ErrWarmFailed, summary.Failed, summary.Failed+summary.Succeeded)
		}

		return nil
	}

	observability.StartMetricsServer(logger, config.MetricsAddr)

	if err := w.Start(ctx); err != nil {
		return err
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")

	cancel()
	w.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return observability.StopMetricsServer(shutdownCtx)
}
