package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethpandaops/deltastage/pkg/catalog"
	"github.com/ethpandaops/deltastage/pkg/extract"
	"github.com/ethpandaops/deltastage/pkg/lock"
	"github.com/ethpandaops/deltastage/pkg/source"
	"github.com/ethpandaops/deltastage/pkg/stage"
	"github.com/ethpandaops/deltastage/pkg/storage"
	"github.com/ethpandaops/deltastage/pkg/watermark"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrNotStarted is returned when the application is used before Start
var ErrNotStarted = errors.New("application not started")

// Application wires the configured source, object store and lock into a Runner
type Application struct {
	config *Config
	logger logrus.FieldLogger

	source     *source.Source
	objects    storage.ObjectStore
	redis      *goredis.Client
	catalog    catalog.Reader
	watermarks watermark.Store
	runner     *Runner
}

// NewApplication creates a new application
func NewApplication(cfg *Config, logger logrus.FieldLogger) *Application {
	return &Application{
		config: cfg,
		logger: logger,
	}
}

// Start connects to the source database, the object store and Redis
func (a *Application) Start(ctx context.Context) error {
	a.config.SetDefaults()

	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	objects, err := storage.New(a.logger, &a.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to setup object store: %w", err)
	}

	return a.start(ctx, objects)
}

func (a *Application) start(ctx context.Context, objects storage.ObjectStore) error {
	a.objects = objects

	for _, bucket := range []string{a.config.Storage.Bucket, a.config.Watermark.Bucket} {
		exists, err := objects.BucketExists(ctx, bucket)
		if err != nil {
			a.logger.WithError(err).WithField("bucket", bucket).Warn("Failed to check bucket")
			continue
		}

		if !exists {
			a.logger.WithField("bucket", bucket).Warn("Bucket does not exist, staging to it will fail")
		}
	}

	src, err := source.Open(ctx, a.logger, &a.config.Source)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}

	a.source = src

	locker := lock.NewNoopLocker()

	if a.config.Redis.Enabled() {
		client, err := a.config.Redis.NewClient()
		if err != nil {
			return fmt.Errorf("failed to setup Redis: %w", err)
		}

		a.redis = client
		locker = lock.NewRedisLocker(a.logger, client, func(name string) string {
			return a.config.Redis.PrefixKey("lock:" + name)
		}, a.config.Redis.LockTTL)
	}

	format, err := stage.ParseFormat(a.config.Stage.Format)
	if err != nil {
		return err
	}

	writer := stage.NewWriter(a.logger, objects)
	modified := a.config.Source.ModifiedColumn

	a.catalog = catalog.NewReader(a.logger, src.DB, src.Dialect, &a.config.Source)
	a.watermarks = watermark.NewStore(a.logger, objects, writer, a.config.Watermark.Bucket, a.config.Watermark.Key)

	a.runner = NewRunner(a.logger, Dependencies{
		Catalog:    a.catalog,
		Refresher:  watermark.NewRefresher(a.logger, src.DB, src.Dialect, modified),
		Extractor:  extract.NewExtractor(a.logger, src.DB, src.Dialect, modified),
		Watermarks: a.watermarks,
		Writer:     writer,
		Locker:     locker,
	}, Options{
		Bucket:      a.config.Storage.Bucket,
		Prefix:      a.config.Storage.Prefix,
		Format:      format,
		Concurrency: a.config.Stage.Concurrency,
		SkipEmpty:   a.config.Stage.SkipEmpty,
		LockName:    a.config.Redis.LockName,
	})

	return nil
}

// Stop closes the database and Redis connections
func (a *Application) Stop() error {
	var errs []error

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis client: %w", err))
		}
	}

	if a.source != nil {
		if err := a.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close source: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Run performs one extraction run
func (a *Application) Run(ctx context.Context) (*Report, error) {
	if a.runner == nil {
		return nil, ErrNotStarted
	}

	return a.runner.Run(ctx)
}

// Catalog returns the table catalog reader
func (a *Application) Catalog() catalog.Reader {
	return a.catalog
}

// Watermarks returns the watermark store
func (a *Application) Watermarks() watermark.Store {
	return a.watermarks
}
