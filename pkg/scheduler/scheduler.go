package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyStarted is returned when Start is called twice
var ErrAlreadyStarted = errors.New("scheduler already started")

//nolint:gochecknoglobals // Parser is stateless
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Job is the work run on every tick
type Job func(ctx context.Context) error

// Scheduler triggers a job on a cron schedule. Ticks that fire while the job is still running are skipped.
type Scheduler struct {
	log logrus.FieldLogger
	cfg *Config
	job Job

	cron    *cron.Cron
	entry   cron.EntryID
	running sync.Mutex
	wg      sync.WaitGroup
	ctx     context.Context //nolint:containedctx // cancels in-flight jobs on Stop
	cancel  context.CancelFunc
}

// New creates a scheduler
func New(log logrus.FieldLogger, cfg *Config, job Job) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := log.WithField("component", "scheduler")

	return &Scheduler{
		log: l,
		cfg: cfg,
		job: job,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cron.PrintfLogger(l)),
			cron.WithChain(cron.Recover(cron.PrintfLogger(l))),
		),
	}, nil
}

// Start begins scheduling. Jobs are cancelled when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.ctx != nil {
		return ErrAlreadyStarted
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	entry, err := s.cron.AddFunc(s.cfg.Schedule, func() { s.Trigger() })
	if err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}

	s.entry = entry
	s.cron.Start()

	s.log.WithFields(logrus.Fields{
		"schedule": s.cfg.Schedule,
		"next":     s.Next(),
	}).Info("Scheduler started")

	if s.cfg.RunOnStart {
		s.wg.Add(1)

		go func() {
			defer s.wg.Done()

			s.Trigger()
		}()
	}

	return nil
}

// Trigger runs the job now unless it is already running. It reports whether the job ran.
func (s *Scheduler) Trigger() bool {
	if !s.running.TryLock() {
		s.log.Warn("Previous run still in progress, skipping tick")

		return false
	}
	defer s.running.Unlock()

	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	if ctx.Err() != nil {
		return false
	}

	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	start := time.Now()

	if err := s.job(ctx); err != nil {
		s.log.WithError(err).WithField("duration", time.Since(start)).Warn("Scheduled run failed")
	} else {
		s.log.WithField("duration", time.Since(start)).Debug("Scheduled run finished")
	}

	return true
}

// Next returns the next scheduled run
func (s *Scheduler) Next() time.Time {
	if s.entry == 0 {
		return time.Time{}
	}

	return s.cron.Entry(s.entry).Next
}

// Stop stops scheduling and waits for a running job to return
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := s.cron.Stop()

	s.wg.Wait()

	select {
	case <-done.Done():
		s.log.Info("Scheduler stopped")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
