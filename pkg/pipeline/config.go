package pipeline

import (
	"errors"
	"fmt"

	"github.com/ethpandaops/deltastage/pkg/redis"
	"github.com/ethpandaops/deltastage/pkg/scheduler"
	"github.com/ethpandaops/deltastage/pkg/source"
	"github.com/ethpandaops/deltastage/pkg/stage"
	"github.com/ethpandaops/deltastage/pkg/storage"
	"github.com/ethpandaops/deltastage/pkg/watermark"
)

var (
	// ErrInvalidConcurrency is returned when concurrency is not positive
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
)

// Config contains the complete pipeline configuration
type Config struct {
	Logging        string           `yaml:"logging" default:"info"`
	MetricsAddr    string           `yaml:"metricsAddr" default:":9090"`
	PushgatewayURL string           `yaml:"pushgatewayURL"`
	Scheduler      scheduler.Config `yaml:",inline"`
	Source         source.Config    `yaml:"source"`
	Storage        storage.Config   `yaml:"storage"`
	Stage          StageConfig      `yaml:"stage"`
	Watermark      WatermarkConfig  `yaml:"watermark"`
	Redis          redis.Config     `yaml:"redis"`
}

// StageConfig contains batch staging settings
type StageConfig struct {
	Format      string `yaml:"format" default:"json"`
	Concurrency int    `yaml:"concurrency" default:"1"`
	SkipEmpty   bool   `yaml:"skipEmpty"`
}

// WatermarkConfig locates the published watermark object
type WatermarkConfig struct {
	Bucket string `yaml:"bucket"` // defaults to storage.bucket
	Key    string `yaml:"key" default:"timestamp_table"`
}

// SetDefaults fills values derived from other sections
func (c *Config) SetDefaults() {
	c.Source.SetDefaults()

	if c.Watermark.Bucket == "" {
		c.Watermark.Bucket = c.Storage.Bucket
	}

	if c.Watermark.Key == "" {
		c.Watermark.Key = watermark.DefaultKey
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source configuration: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage configuration: %w", err)
	}

	if err := c.Stage.Validate(); err != nil {
		return fmt.Errorf("stage configuration: %w", err)
	}

	if c.Watermark.Bucket == "" {
		return fmt.Errorf("watermark configuration: %w", storage.ErrBucketRequired)
	}

	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler configuration: %w", err)
	}

	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis configuration: %w", err)
	}

	return nil
}

// Validate validates the stage configuration
func (c *StageConfig) Validate() error {
	if _, err := stage.ParseFormat(c.Format); err != nil {
		return err
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	return nil
}
