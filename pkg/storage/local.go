package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// LocalStore keeps buckets as directories under a root. Writes go to a temp file that is renamed
// over the target, so a failed write never leaves a partial object behind.
type LocalStore struct {
	log  logrus.FieldLogger
	root string
}

// NewLocalStore creates a filesystem store rooted at root. The root must exist.
func NewLocalStore(log logrus.FieldLogger, root string) (*LocalStore, error) {
	if root == "" {
		return nil, ErrRootRequired
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootRequired, abs)
	}

	return &LocalStore{
		log:  log.WithField("component", "local_store"),
		root: abs,
	}, nil
}

// MakeBucket creates a bucket directory
func (s *LocalStore) MakeBucket(bucket string) error {
	if bucket == "" {
		return ErrBucketRequired
	}

	return os.MkdirAll(filepath.Join(s.root, bucket), 0o750)
}

func (s *LocalStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, classify("HeadBucket", err)
	}

	if bucket == "" {
		return false, nil
	}

	info, err := os.Stat(filepath.Join(s.root, bucket))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, classify("HeadBucket", err)
	}

	return info.IsDir(), nil
}

func (s *LocalStore) PutObject(ctx context.Context, bucket, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return classify("PutObject", err)
	}

	if err := validateKey(key); err != nil {
		return err
	}

	exists, err := s.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}

	if !exists {
		return classify("PutObject", noSuchBucket(bucket))
	}

	target := s.path(bucket, key)

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return classify("PutObject", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".put-*")
	if err != nil {
		return classify("PutObject", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return classify("PutObject", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return classify("PutObject", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return classify("PutObject", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)

		return classify("PutObject", err)
	}

	s.log.WithFields(logrus.Fields{
		"bucket": bucket,
		"key":    key,
		"bytes":  len(data),
	}).Debug("Wrote object")

	return nil
}

func (s *LocalStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("GetObject", err)
	}

	if err := validateKey(key); err != nil {
		return nil, err
	}

	exists, err := s.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, classify("GetObject", noSuchBucket(bucket))
	}

	data, err := os.ReadFile(s.path(bucket, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, classify("GetObject", noSuchKey(bucket, key))
	}

	if err != nil {
		return nil, classify("GetObject", err)
	}

	return data, nil
}

func (s *LocalStore) Location(bucket, key string) string {
	return "file://" + filepath.ToSlash(s.path(bucket, key))
}

func (s *LocalStore) path(bucket, key string) string {
	return filepath.Join(s.root, bucket, filepath.FromSlash(key))
}

var _ ObjectStore = (*LocalStore)(nil)
