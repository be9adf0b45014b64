// Package storage provides the blob stores staged objects are written to
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/ethpandaops/deltastage/pkg/errkind"
	"github.com/sirupsen/logrus"
)

const (
	// TypeS3 selects the S3-compatible store
	TypeS3 = "s3"
	// TypeLocal selects the filesystem store
	TypeLocal = "local"
)

var (
	// ErrBucketRequired is returned when no bucket is configured
	ErrBucketRequired = errors.New("bucket is required")
	// ErrRootRequired is returned when the local store has no root directory
	ErrRootRequired = errors.New("root directory is required for the local store")
	// ErrUnsupportedType is returned for unknown store types
	ErrUnsupportedType = errors.New("unsupported storage type")
	// ErrInvalidKey is returned for empty keys or keys escaping the bucket
	ErrInvalidKey = errors.New("invalid object key")
)

// ObjectStore writes and reads whole objects. PutObject replaces an object atomically:
// readers see either the previous content or the new content, never a mix.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	// Location is the canonical reference of an object, e.g. s3://bucket/key
	Location(bucket, key string) string
}

// Config contains the object store settings
type Config struct {
	Type            string `yaml:"type" default:"s3"`
	Endpoint        string `yaml:"endpoint" default:"s3.amazonaws.com"`
	Region          string `yaml:"region" default:"eu-west-2"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	SessionToken    string `yaml:"sessionToken"`
	UseSSL          bool   `yaml:"useSSL" default:"true"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Root            string `yaml:"root"` // local only
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Type {
	case TypeS3:
	case TypeLocal:
		if c.Root == "" {
			return ErrRootRequired
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, c.Type)
	}

	if c.Bucket == "" {
		return ErrBucketRequired
	}

	return nil
}

// New creates the configured object store
func New(log logrus.FieldLogger, cfg *Config) (ObjectStore, error) {
	switch cfg.Type {
	case TypeS3:
		return NewS3Store(log, cfg)
	case TypeLocal:
		return NewLocalStore(log, cfg.Root)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, cfg.Type)
	}
}

// ObjectKey joins an optional prefix, a name and a format extension: <prefix>/<name>.<format>
func ObjectKey(prefix, name, format string) string {
	key := name
	if format != "" {
		key = name + "." + format
	}

	if prefix == "" {
		return key
	}

	return path.Join(strings.Trim(prefix, "/"), key)
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return errkind.New(errkind.Validation, "validate key", fmt.Errorf("%w: %q", ErrInvalidKey, key))
	}

	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return errkind.New(errkind.Validation, "validate key", fmt.Errorf("%w: %q", ErrInvalidKey, key))
		}
	}

	return nil
}
