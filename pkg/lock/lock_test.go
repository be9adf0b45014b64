package lock

import (
	"context"
	"testing"
	"time"

	"github.com/ethpandaops/deltastage/internal/testutil"
	"github.com/ethpandaops/deltastage/pkg/errkind"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(name string) string {
	return "deltastage:lock:" + name
}

func newTestLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	return log
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	mr, client := testutil.NewMiniredisClient(t)
	ctx := context.Background()

	locker := NewRedisLocker(newTestLogger(), client, testKey, time.Minute)

	lease, err := locker.Acquire(ctx, "extract")
	require.NoError(t, err)

	token, err := mr.Get("deltastage:lock:extract")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Greater(t, mr.TTL("deltastage:lock:extract"), time.Duration(0))

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists("deltastage:lock:extract"))

	// Releasing twice is harmless
	require.NoError(t, lease.Release(ctx))
}

func TestRedisLocker_SecondRunConflicts(t *testing.T) {
	_, client := testutil.NewMiniredisClient(t)
	ctx := context.Background()

	first := NewRedisLocker(newTestLogger(), client, testKey, time.Minute)
	second := NewRedisLocker(newTestLogger(), client, testKey, time.Minute)

	lease, err := first.Acquire(ctx, "extract")
	require.NoError(t, err)

	_, err = second.Acquire(ctx, "extract")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHeld)
	assert.Equal(t, errkind.Conflict, errkind.Of(err))

	// Other lock names are independent
	other, err := second.Acquire(ctx, "backfill")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))

	again, err := second.Acquire(ctx, "extract")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestRedisLocker_ReleaseDoesNotDeleteForeignLock(t *testing.T) {
	mr, client := testutil.NewMiniredisClient(t)
	ctx := context.Background()

	lease, err := NewRedisLocker(newTestLogger(), client, testKey, time.Minute).Acquire(ctx, "extract")
	require.NoError(t, err)

	// The lease expired and another run took over
	require.NoError(t, mr.Set("deltastage:lock:extract", "someone-else"))

	require.NoError(t, lease.Release(ctx))

	owner, err := mr.Get("deltastage:lock:extract")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", owner)
}

func TestRedisLocker_LostLease(t *testing.T) {
	mr, client := testutil.NewMiniredisClient(t)
	ctx := context.Background()

	lease, err := NewRedisLocker(newTestLogger(), client, testKey, 300*time.Millisecond).Acquire(ctx, "extract")
	require.NoError(t, err)

	defer func() { _ = lease.Release(ctx) }()

	mr.Del("deltastage:lock:extract")

	select {
	case <-lease.Lost():
	case <-time.After(2 * time.Second):
		t.Fatal("lease was not reported lost")
	}
}

func TestRedisLocker_RenewKeepsLease(t *testing.T) {
	mr, client := testutil.NewMiniredisClient(t)
	ctx := context.Background()

	lease, err := NewRedisLocker(newTestLogger(), client, testKey, 300*time.Millisecond).Acquire(ctx, "extract")
	require.NoError(t, err)

	defer func() { _ = lease.Release(ctx) }()

	// miniredis only expires keys on FastForward; renewals keep resetting the TTL
	time.Sleep(250 * time.Millisecond)
	assert.Greater(t, mr.TTL("deltastage:lock:extract"), 150*time.Millisecond)

	select {
	case <-lease.Lost():
		t.Fatal("lease lost while renewing")
	default:
	}
}

func TestRedisLocker_LeaseExpiresDuringOutage(t *testing.T) {
	mr, client := testutil.NewMiniredisClient(t)
	ctx := context.Background()

	ttl := 300 * time.Millisecond

	lease, err := NewRedisLocker(newTestLogger(), client, testKey, ttl).Acquire(ctx, "extract")
	require.NoError(t, err)

	defer func() { _ = lease.Release(ctx) }()

	mr.SetError("LOADING Redis is loading the dataset in memory")

	select {
	case <-lease.Lost():
	case <-time.After(2 * time.Second):
		t.Fatal("lease still held after renewals failed for longer than the ttl")
	}

	// Redis comes back after the key expired; another run may now take the lock
	mr.SetError("")
	mr.FastForward(ttl)

	other, err := NewRedisLocker(newTestLogger(), client, testKey, ttl).Acquire(ctx, "extract")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))
}

func TestRedisLocker_Unreachable(t *testing.T) {
	mr, client := testutil.NewMiniredisClient(t)
	mr.Close()

	_, err := NewRedisLocker(newTestLogger(), client, testKey, time.Minute).Acquire(context.Background(), "extract")
	require.Error(t, err)
	assert.Equal(t, errkind.Connectivity, errkind.Of(err))
}

func TestNoopLocker(t *testing.T) {
	lease, err := NewNoopLocker().Acquire(context.Background(), "extract")
	require.NoError(t, err)
	assert.Nil(t, lease.Lost())
	assert.NoError(t, lease.Release(context.Background()))
}
