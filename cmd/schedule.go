package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethpandaops/deltastage/pkg/observability"
	"github.com/ethpandaops/deltastage/pkg/pipeline"
	"github.com/ethpandaops/deltastage/pkg/scheduler"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run extractions on the configured cron schedule",
	Long: `Runs an extraction on every tick of the configured schedule and serves Prometheus
metrics until interrupted. A tick is skipped while the previous run is still going.`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if config.MetricsAddr != "" {
		observability.StartMetricsServer(config.MetricsAddr)
	}

	logger.WithField("version", fullVersion()).Info("Starting deltastage")

	app := pipeline.NewApplication(config, logger)
	if err := app.Start(ctx); err != nil {
		return err
	}

	sched, err := scheduler.New(logger, &config.Scheduler, func(ctx context.Context) error {
		_, err := app.Run(ctx)

		return err
	})
	if err != nil {
		return err
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	logger.Info("Shutting down scheduler...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to stop scheduler")
	}

	if err := observability.StopMetricsServer(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to stop metrics server")
	}

	return app.Stop()
}
