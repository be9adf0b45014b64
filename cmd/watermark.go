package cmd

import (
	"github.com/ethpandaops/deltastage/pkg/pipeline"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	watermarkOutput string
)

// watermarkCmd represents the watermark command group
//
//nolint:gochecknoglobals // Cobra commands are typically global
var watermarkCmd = &cobra.Command{
	Use:   "watermark",
	Short: "Inspect the published watermark",
}

//nolint:gochecknoglobals // Cobra commands are typically global
var watermarkShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the last modified timestamp of every table",
	RunE:  runWatermarkShow,
}

func init() {
	rootCmd.AddCommand(watermarkCmd)
	watermarkCmd.AddCommand(watermarkShowCmd)
	watermarkShowCmd.Flags().StringVarP(&watermarkOutput, "output", "o", outputText, "output format (text, json)")
}

func runWatermarkShow(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	if err := checkOutput(watermarkOutput); err != nil {
		return err
	}

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	quietLogs(cmd)

	app := pipeline.NewApplication(config, logger)
	if err := app.Start(cmd.Context()); err != nil {
		return err
	}

	defer func() {
		if err := app.Stop(); err != nil {
			logger.WithError(err).Error("Failed to stop application")
		}
	}()

	w, err := app.Watermarks().Load(cmd.Context())
	if err != nil {
		return err
	}

	return printWatermark(cmd.OutOrStdout(), w, watermarkOutput)
}
