package testutil

import (
	"testing"

	"github.com/ethpandaops/deltastage/pkg/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// NewLocalStore creates a local object store in a temp directory with the given buckets
func NewLocalStore(t *testing.T, log logrus.FieldLogger, buckets ...string) *storage.LocalStore {
	t.Helper()

	store, err := storage.NewLocalStore(log, t.TempDir())
	require.NoError(t, err)

	for _, bucket := range buckets {
		require.NoError(t, store.MakeBucket(bucket))
	}

	return store
}
