// Package cmd contains the CLI commands for deltastage
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// configEnv overrides the default config path
const configEnv = "DELTASTAGE_CONFIG"

//nolint:gochecknoglobals // Global vars needed for cobra CLI
var (
	cfgFile  string
	logLevel string
	logger   *logrus.Logger
)

// rootCmd represents the base command
//
//nolint:gochecknoglobals // Cobra commands are typically global
var rootCmd = &cobra.Command{
	Use:   "deltastage",
	Short: "Incremental extraction of relational tables into blob storage",
	Long: `deltastage extracts the rows of an operational database that changed since the
last successful run, stages them in blob storage and advances a per-table watermark
once every table has been staged.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if cfgFile == "" {
			cfgFile = os.Getenv(configEnv)
		}

		if cfgFile == "" {
			cfgFile = "./config.yaml"
		}

		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}

		logger.SetLevel(level)

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $"+configEnv+" or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error, fatal, panic)")

	logger = logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}
