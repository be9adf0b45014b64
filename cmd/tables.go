package cmd

import (
	"github.com/ethpandaops/deltastage/pkg/pipeline"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	tablesColumns bool
)

//nolint:gochecknoglobals // Cobra commands are typically global
var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the extractable tables",
	Long:  `Lists the tables of the configured schema that carry the modification column.`,
	RunE:  runTables,
}

func init() {
	rootCmd.AddCommand(tablesCmd)
	tablesCmd.Flags().BoolVar(&tablesColumns, "columns", false, "list the columns of every table in order")
}

func runTables(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

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

	tables, err := app.Catalog().Tables(cmd.Context())
	if err != nil {
		return err
	}

	return printTables(cmd.OutOrStdout(), tables, tablesColumns)
}
