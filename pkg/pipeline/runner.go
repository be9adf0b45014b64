// Package pipeline runs incremental extractions and publishes the watermark once every table is staged
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/deltastage/pkg/catalog"
	"github.com/ethpandaops/deltastage/pkg/errkind"
	"github.com/ethpandaops/deltastage/pkg/extract"
	"github.com/ethpandaops/deltastage/pkg/lock"
	"github.com/ethpandaops/deltastage/pkg/observability"
	"github.com/ethpandaops/deltastage/pkg/stage"
	"github.com/ethpandaops/deltastage/pkg/storage"
	"github.com/ethpandaops/deltastage/pkg/watermark"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrTablesFailed is returned when at least one table was not staged
	ErrTablesFailed = errors.New("one or more tables failed to stage")
	// ErrPublishFailed is returned when the watermark could not be written
	ErrPublishFailed = errors.New("failed to publish watermark")
	// ErrLeaseLost is returned when the run lock expired mid-run
	ErrLeaseLost = errors.New("run lock lost")
	// ErrWatermarkCollision is returned for a table whose batch would be staged over the watermark object
	ErrWatermarkCollision = errors.New("batch key collides with the watermark object")
)

// Dependencies are the components a run is built from
type Dependencies struct {
	Catalog    catalog.Reader
	Refresher  watermark.Refresher
	Extractor  extract.Extractor
	Watermarks watermark.Store
	Writer     *stage.Writer
	Locker     lock.Locker
}

// Options control where and how batches are staged
type Options struct {
	Bucket      string
	Prefix      string
	Format      stage.Format
	Concurrency int
	SkipEmpty   bool
	LockName    string
}

// Runner executes extraction runs
type Runner struct {
	log  logrus.FieldLogger
	deps Dependencies
	opts Options
}

// NewRunner creates a runner. A nil Locker runs without mutual exclusion.
func NewRunner(log logrus.FieldLogger, deps Dependencies, opts Options) *Runner {
	if deps.Locker == nil {
		deps.Locker = lock.NewNoopLocker()
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	if opts.Format == "" {
		opts.Format = stage.FormatJSON
	}

	if opts.LockName == "" {
		opts.LockName = "extract"
	}

	return &Runner{
		log:  log.WithField("component", "runner"),
		deps: deps,
		opts: opts,
	}
}

// Run performs one extraction. The returned report is never nil. The prior watermark is only
// replaced when every table staged successfully.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Tables:    []TableReport{},
	}

	log := r.log.WithField("run_id", report.RunID)

	err := r.run(ctx, log, report)

	report.FinishedAt = time.Now().UTC()

	status := observability.StatusSuccess

	switch {
	case errkind.Is(err, errkind.Conflict):
		status = observability.StatusConflict

		log.WithError(err).Warn("Another run is in progress, skipping")
	case err != nil:
		status = observability.StatusFailed

		observability.RecordError("runner", string(errkind.Of(err)))
		log.WithError(err).Error("Extraction run failed")
	default:
		log.WithFields(logrus.Fields{
			"tables":   len(report.Tables),
			"rows":     report.Rows(),
			"duration": report.Duration(),
		}).Info("Extraction run completed")
	}

	observability.RecordRun(status, report.Duration())

	return report, err
}

func (r *Runner) run(ctx context.Context, log logrus.FieldLogger, report *Report) error {
	lease, err := r.deps.Locker.Acquire(ctx, r.opts.LockName)
	if err != nil {
		return err
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if releaseErr := lease.Release(releaseCtx); releaseErr != nil {
			log.WithError(releaseErr).Warn("Failed to release run lock")
		}
	}()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	go func() {
		select {
		case <-lease.Lost():
			cancel(ErrLeaseLost)
		case <-ctx.Done():
		}
	}()

	tables, err := r.deps.Catalog.Tables(ctx)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}

	refreshed, err := r.deps.Refresher.Refresh(ctx, tables)
	if err != nil {
		return fmt.Errorf("failed to refresh watermark: %w", err)
	}

	prior, err := r.deps.Watermarks.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load watermark: %w", err)
	}

	log.WithFields(logrus.Fields{
		"tables": len(tables),
		"prior":  len(prior),
	}).Info("Starting extraction run")

	report.Tables = make([]TableReport, len(tables))

	var g errgroup.Group

	g.SetLimit(r.opts.Concurrency)

	for i := range tables {
		table := tables[i]

		g.Go(func() error {
			report.Tables[i] = r.stageTable(ctx, log, table, prior.Get(table.Name), refreshed.Get(table.Name))

			return nil
		})
	}

	_ = g.Wait()

	if ctxErr := context.Cause(ctx); ctxErr != nil {
		if errors.Is(ctxErr, ErrLeaseLost) {
			return errkind.New(errkind.Conflict, "extraction run", ctxErr)
		}

		return errkind.Wrap("extraction run", ctxErr)
	}

	if failed := report.Failed(); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, f := range failed {
			names = append(names, f.Table)
		}

		return fmt.Errorf("%w: %v", ErrTablesFailed, names)
	}

	select {
	case <-lease.Lost():
		return errkind.New(errkind.Conflict, "publish watermark", ErrLeaseLost)
	default:
	}

	next := watermark.Advance(prior, refreshed)

	result := r.deps.Watermarks.Publish(ctx, next)
	if !result.OK() {
		return errkind.New(result.Kind, "publish watermark", fmt.Errorf("%w: %w", ErrPublishFailed, result.Err))
	}

	report.Published = true
	report.Watermark = next
	report.WatermarkLocation = result.Location

	observability.RecordWatermark(next)

	log.WithField("location", result.Location).Info("Published watermark")

	return nil
}

func (r *Runner) stageTable(ctx context.Context, log logrus.FieldLogger, table catalog.Table, since, until time.Time) TableReport {
	tr := TableReport{
		Table:  table.Name,
		Status: stage.StatusFailure,
		Since:  since,
		Until:  until,
	}

	log = log.WithField("table", table.Name)

	fail := func(err error) TableReport {
		tr.Kind = errkind.Of(err)
		tr.Error = err.Error()

		observability.RecordStage(table.Name, string(stage.StatusFailure))
		observability.RecordError("stage", string(tr.Kind))

		return tr
	}

	key := storage.ObjectKey(r.opts.Prefix, table.Name, "")

	wmBucket, wmKey := r.deps.Watermarks.Object()
	if r.opts.Bucket == wmBucket && storage.ObjectKey("", key, string(r.opts.Format)) == wmKey {
		err := errkind.New(errkind.Validation, "stage "+table.Name,
			fmt.Errorf("%w: %s/%s", ErrWatermarkCollision, wmBucket, wmKey))

		log.WithError(err).Error("Refusing to stage table over the watermark, set storage.prefix or watermark.bucket")

		return fail(err)
	}

	batch, err := r.deps.Extractor.Extract(ctx, table, since, until)
	if err != nil {
		log.WithError(err).Error("Failed to extract table")

		return fail(err)
	}

	tr.Rows = batch.Len()
	observability.RecordRows(table.Name, tr.Rows)

	if r.opts.SkipEmpty && batch.Len() == 0 {
		log.Debug("No changes, skipping")

		tr.Status = stage.StatusSuccess
		tr.Skipped = true

		return tr
	}

	data, err := stage.Encode(r.opts.Format, batch)
	if err != nil {
		err = errkind.New(errkind.Validation, "encode batch", err)

		log.WithError(err).Error("Failed to encode batch")

		return fail(err)
	}

	result := r.deps.Writer.Stage(ctx, r.opts.Bucket, key, r.opts.Format, data)
	if !result.OK() {
		return fail(result.Err)
	}

	tr.Status = stage.StatusSuccess
	tr.Location = result.Location

	observability.RecordStage(table.Name, string(stage.StatusSuccess))

	log.WithFields(logrus.Fields{
		"rows":     tr.Rows,
		"location": result.Location,
	}).Info("Staged table")

	return tr
}
