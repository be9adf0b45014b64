// Package source opens the operational database the pipeline extracts from
package source

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ethpandaops/deltastage/pkg/credentials"
)

var (
	// ErrUnsupportedDriver is returned for drivers without a dialect
	ErrUnsupportedDriver = errors.New("unsupported source driver")
	// ErrModifiedColumnRequired is returned when no modification column is configured
	ErrModifiedColumnRequired = errors.New("modified column is required")
	// ErrSystemSchema is returned when the configured schema is a system schema
	ErrSystemSchema = errors.New("system schemas cannot be extracted")
	// ErrPathRequired is returned when the sqlite3 driver has no database path
	ErrPathRequired = errors.New("path is required for the sqlite3 driver")
	// ErrCredentialsRequired is returned when a network driver has no credentials
	ErrCredentialsRequired = errors.New("credentials are required")
)

// Config contains the source database settings
type Config struct {
	Driver         string             `yaml:"driver" default:"postgres"`
	Schema         string             `yaml:"schema"`
	ModifiedColumn string             `yaml:"modifiedColumn" default:"last_updated"`
	IncludeTables  []string           `yaml:"includeTables"`
	ExcludeTables  []string           `yaml:"excludeTables"`
	SSLMode        string             `yaml:"sslMode" default:"require"`
	ConnectTimeout time.Duration      `yaml:"connectTimeout" default:"10s"`
	MaxOpenConns   int                `yaml:"maxOpenConns" default:"4"`
	Path           string             `yaml:"path"` // sqlite3 only
	Credentials    credentials.Config `yaml:"credentials"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	dialect, err := DialectFor(c.Driver)
	if err != nil {
		return err
	}

	if c.ModifiedColumn == "" {
		return ErrModifiedColumnRequired
	}

	if slices.Contains(dialect.SystemSchemas(), c.Schema) {
		return fmt.Errorf("%w: %s", ErrSystemSchema, c.Schema)
	}

	if c.Driver == DriverSQLite && c.Path == "" {
		return ErrPathRequired
	}

	return nil
}

// SetDefaults fills the schema from the dialect when unset
func (c *Config) SetDefaults() {
	if c.Schema != "" {
		return
	}

	if dialect, err := DialectFor(c.Driver); err == nil {
		c.Schema = dialect.DefaultSchema()
	}
}

// Includes reports whether a table passes the include and exclude lists
func (c *Config) Includes(table string) bool {
	if slices.Contains(c.ExcludeTables, table) {
		return false
	}

	if len(c.IncludeTables) == 0 {
		return true
	}

	return slices.Contains(c.IncludeTables, table)
}
