// Package redis provides Redis client configuration
package redis

import (
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Define static errors
var (
	ErrURLRequired     = errors.New("redis url is required")
	ErrInvalidLockTTL  = errors.New("lock TTL must be at least one second")
	ErrLockNameMissing = errors.New("lock name is required")
)

// Config holds Redis client configuration. Redis is optional; without a URL runs are not locked.
type Config struct {
	URL      string        `yaml:"url"`
	Prefix   string        `yaml:"prefix" default:"deltastage"`
	LockName string        `yaml:"lockName" default:"extract"`
	LockTTL  time.Duration `yaml:"lockTTL" default:"5m"`
}

// Enabled reports whether a Redis URL is configured
func (c *Config) Enabled() bool {
	return c.URL != ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}

	if c.LockTTL < time.Second {
		return ErrInvalidLockTTL
	}

	if c.LockName == "" {
		return ErrLockNameMissing
	}

	if c.Prefix == "" {
		c.Prefix = "deltastage"
	}

	return nil
}

// PrefixKey adds the configured prefix to a Redis key
func (c *Config) PrefixKey(key string) string {
	if c.Prefix == "" {
		return key
	}

	return fmt.Sprintf("%s:%s", c.Prefix, key)
}

// NewClient parses the URL and creates a client
func (c *Config) NewClient() (*goredis.Client, error) {
	if !c.Enabled() {
		return nil, ErrURLRequired
	}

	opt, err := goredis.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	return goredis.NewClient(opt), nil
}
