// Package lock provides the mutual exclusion that keeps two extraction runs from overlapping
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethpandaops/deltastage/pkg/errkind"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	// ErrHeld is returned when another run holds the lock
	ErrHeld = errors.New("lock is held by another run")
)

//nolint:gochecknoglobals // Scripts are immutable and cache their SHA
var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// Lease is a held lock
type Lease interface {
	// Lost is closed when the lease could not be renewed
	Lost() <-chan struct{}
	Release(ctx context.Context) error
}

// Locker acquires named leases
type Locker interface {
	Acquire(ctx context.Context, name string) (Lease, error)
}

// KeyFunc maps a lock name to its Redis key
type KeyFunc func(name string) string

type redisLocker struct {
	log   logrus.FieldLogger
	redis *redis.Client
	key   KeyFunc
	ttl   time.Duration
}

// NewRedisLocker creates a locker backed by SET NX leases renewed at a third of ttl
func NewRedisLocker(log logrus.FieldLogger, client *redis.Client, key KeyFunc, ttl time.Duration) Locker {
	return &redisLocker{
		log:   log.WithField("component", "lock"),
		redis: client,
		key:   key,
		ttl:   ttl,
	}
}

func (l *redisLocker) Acquire(ctx context.Context, name string) (Lease, error) {
	key := l.key(name)
	token := uuid.New().String()
	acquiredAt := time.Now()

	ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, errkind.New(errkind.Connectivity, "acquire lock", err)
	}

	if !ok {
		owner, getErr := l.redis.Get(ctx, key).Result()
		if getErr != nil && !errors.Is(getErr, redis.Nil) {
			l.log.WithError(getErr).Debug("Failed to read lock owner")
		}

		return nil, errkind.New(errkind.Conflict, "acquire lock", fmt.Errorf("%w: %s (owner %s)", ErrHeld, key, owner))
	}

	lease := &redisLease{
		log:        l.log.WithFields(logrus.Fields{"key": key, "token": token}),
		redis:      l.redis,
		key:        key,
		token:      token,
		ttl:        l.ttl,
		acquiredAt: acquiredAt,
		lost:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	lease.wg.Add(1)
	go lease.renew()

	lease.log.WithField("ttl", l.ttl).Debug("Acquired lock")

	return lease, nil
}

type redisLease struct {
	log        logrus.FieldLogger
	redis      *redis.Client
	key        string
	token      string
	ttl        time.Duration
	acquiredAt time.Time

	lost     chan struct{}
	lostOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
}

func (l *redisLease) Lost() <-chan struct{} {
	return l.lost
}

func (l *redisLease) renew() {
	defer l.wg.Done()

	interval := l.ttl / 3
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// The key expires ttl after the last successful renew whether or not Redis answers, so the
	// lease is given up once the next attempt could only land after expiry.
	renewedAt := l.acquiredAt

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			start := time.Now()
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			renewed, err := renewScript.Run(ctx, l.redis, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
			cancel()

			if err != nil {
				if time.Since(renewedAt)+interval >= l.ttl {
					l.log.WithError(err).Error("Lock expired while Redis was unreachable")
					l.markLost()

					return
				}

				l.log.WithError(err).Warn("Failed to renew lock")

				continue
			}

			if renewed == 0 {
				l.log.Warn("Lock lost to another owner")
				l.markLost()

				return
			}

			renewedAt = start
		}
	}
}

func (l *redisLease) markLost() {
	l.lostOnce.Do(func() { close(l.lost) })
}

func (l *redisLease) Release(ctx context.Context) error {
	l.doneOnce.Do(func() { close(l.done) })
	l.wg.Wait()

	if err := releaseScript.Run(ctx, l.redis, []string{l.key}, l.token).Err(); err != nil {
		return errkind.New(errkind.Connectivity, "release lock", err)
	}

	l.log.Debug("Released lock")

	return nil
}

type noopLocker struct{}

// NewNoopLocker returns a locker whose leases always succeed. Used when Redis is not configured.
func NewNoopLocker() Locker {
	return noopLocker{}
}

func (noopLocker) Acquire(_ context.Context, _ string) (Lease, error) {
	return noopLease{}, nil
}

type noopLease struct{}

func (noopLease) Lost() <-chan struct{}           { return nil }
func (noopLease) Release(_ context.Context) error { return nil }

var (
	_ Locker = (*redisLocker)(nil)
	_ Locker = noopLocker{}
)
