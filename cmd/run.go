package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethpandaops/deltastage/pkg/observability"
	"github.com/ethpandaops/deltastage/pkg/pipeline"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	runOutput string
)

//nolint:gochecknoglobals // Cobra commands are typically global
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one incremental extraction",
	Long: `Extracts the rows changed since the published watermark, stages one object per
table and publishes the new watermark when every table succeeded. Exits non-zero
when any table failed or the run aborted.`,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runOutput, "output", "o", outputText, "report format (text, json)")
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	if err := checkOutput(runOutput); err != nil {
		return err
	}

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithField("version", fullVersion()).Info("Starting deltastage")

	app := pipeline.NewApplication(config, logger)
	if err := app.Start(ctx); err != nil {
		return err
	}

	defer func() {
		if err := app.Stop(); err != nil {
			logger.WithError(err).Error("Failed to stop application")
		}
	}()

	report, runErr := app.Run(ctx)

	if err := printReport(cmd.OutOrStdout(), report, runOutput); err != nil {
		logger.WithError(err).Error("Failed to print report")
	}

	if config.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if err := observability.Push(pushCtx, config.PushgatewayURL, "deltastage"); err != nil {
			logger.WithError(err).Warn("Failed to push metrics")
		}
	}

	return runErr
}
