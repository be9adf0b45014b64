package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/ethpandaops/deltastage/pkg/pipeline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist
var ErrConfigNotFound = errors.New("config file not found")

// LoadConfig loads the pipeline configuration from a YAML file. Values of the form ${VAR} are
// expanded from the environment before decoding.
func LoadConfig(path string) (*pipeline.Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	config := &pipeline.Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	yamlFile, err := os.ReadFile(path) //nolint:gosec // User-provided config file path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}

		return nil, err
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(yamlFile))), config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	config.SetDefaults()

	return config, nil
}

// loadConfig loads --config and applies the configured log level unless --log-level was given
func loadConfig(cmd *cobra.Command) (*pipeline.Config, error) {
	config, err := LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	if !cmd.Flags().Changed("log-level") && config.Logging != "" {
		level, err := logrus.ParseLevel(config.Logging)
		if err != nil {
			return nil, fmt.Errorf("invalid logging level %q: %w", config.Logging, err)
		}

		logger.SetLevel(level)
	}

	return config, nil
}

// quietLogs keeps informational logs out of command output unless --log-level was given
func quietLogs(cmd *cobra.Command) {
	if !cmd.Flags().Changed("log-level") {
		logger.SetLevel(logrus.ErrorLevel)
	}
}
