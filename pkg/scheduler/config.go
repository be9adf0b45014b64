// Package scheduler runs extractions on a cron schedule
package scheduler

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrScheduleRequired is returned when no schedule is configured
	ErrScheduleRequired = errors.New("schedule is required")
)

// Config defines scheduler configuration
type Config struct {
	Schedule   string        `yaml:"schedule" default:"@every 30m"`
	RunOnStart bool          `yaml:"runOnStart" default:"true"`
	RunTimeout time.Duration `yaml:"runTimeout" default:"1h"`
}

// Validate checks if the scheduler configuration is valid
func (c *Config) Validate() error {
	if c.Schedule == "" {
		return ErrScheduleRequired
	}

	if _, err := parser.Parse(c.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
	}

	return nil
}
