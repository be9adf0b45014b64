package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// NewMiniredis starts an in-memory Redis that is closed with the test
func NewMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()

	return miniredis.RunT(t)
}

// RedisURL returns a redis:// URL pointing at mr, as accepted by the redis config
func RedisURL(mr *miniredis.Miniredis) string {
	return "redis://" + mr.Addr()
}

// NewMiniredisClient starts an in-memory Redis and a client connected to it.
// The client is closed before the server when the test completes.
func NewMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := NewMiniredis(t)

	opt, err := redis.ParseURL(RedisURL(mr))
	if err != nil {
		t.Fatalf("failed to parse miniredis url: %v", err)
	}

	client := redis.NewClient(opt)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return mr, client
}
