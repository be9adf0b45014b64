package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.FatalLevel)

	return log
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{name: "descriptor", schedule: "@every 30m"},
		{name: "hourly", schedule: "@hourly"},
		{name: "five fields", schedule: "*/15 * * * *"},
		{name: "empty", schedule: "", wantErr: true},
		{name: "seconds field", schedule: "0 */15 * * * *", wantErr: true},
		{name: "garbage", schedule: "whenever", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Schedule: tt.schedule}

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestScheduler_RunOnStart(t *testing.T) {
	var runs atomic.Int32

	s, err := New(newTestLogger(), &Config{Schedule: "@every 1h", RunOnStart: true}, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.Next(), 5*time.Second)

	require.NoError(t, s.Stop(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}

func TestScheduler_Ticks(t *testing.T) {
	var runs atomic.Int32

	s, err := New(newTestLogger(), &Config{Schedule: "@every 1s"}, func(context.Context) error {
		runs.Add(1)
		return errors.New("source unavailable")
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	var runs atomic.Int32

	s, err := New(newTestLogger(), &Config{Schedule: "@every 1h"}, func(context.Context) error {
		runs.Add(1)
		close(started)
		<-release

		return nil
	})
	require.NoError(t, err)

	done := make(chan bool)

	go func() { done <- s.Trigger() }()

	<-started
	assert.False(t, s.Trigger(), "second trigger while running must be skipped")

	close(release)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})

	var cancelled atomic.Bool

	s, err := New(newTestLogger(), &Config{Schedule: "@every 1h", RunOnStart: true}, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)

		return ctx.Err()
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, s.Stop(ctx))
	assert.True(t, cancelled.Load())
}

func TestScheduler_RunTimeout(t *testing.T) {
	var deadline atomic.Bool

	s, err := New(newTestLogger(), &Config{Schedule: "@every 1h", RunTimeout: 50 * time.Millisecond}, func(ctx context.Context) error {
		<-ctx.Done()
		deadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))

		return ctx.Err()
	})
	require.NoError(t, err)

	assert.True(t, s.Trigger())
	assert.True(t, deadline.Load())
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(newTestLogger(), &Config{Schedule: "nope"}, func(context.Context) error { return nil })
	assert.Error(t, err)
}
