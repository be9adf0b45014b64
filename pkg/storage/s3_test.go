package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethpandaops/deltastage/pkg/errkind"
	"github.com/minio/minio-go/v7"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 answers path-style requests for one bucket with canned objects
type fakeS3 struct {
	bucket  string
	objects map[string]string

	mu   sync.Mutex
	puts map[string]string // key -> content type
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	bucket := parts[0]

	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	if bucket != f.bucket {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		writeS3Error(w, "NoSuchBucket", "The specified bucket does not exist", bucket, key)

		return
	}

	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		_, _ = io.Copy(io.Discard, r.Body)

		f.mu.Lock()
		f.puts[key] = r.Header.Get("Content-Type")
		f.mu.Unlock()

		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			writeS3Error(w, "NoSuchKey", "The specified key does not exist.", bucket, key)
			return
		}

		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("ETag", `"etag"`)
		_, _ = io.WriteString(w, body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeS3Error(w http.ResponseWriter, code, message, bucket, key string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusNotFound)
	_, _ = fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>%s</Code><Message>%s</Message><BucketName>%s</BucketName><Key>%s</Key><RequestId>test</RequestId></Error>`,
		code, message, bucket, key)
}

func newTestS3Store(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()

	fake := &fakeS3{
		bucket:  "ingestion",
		objects: map[string]string{"timestamp_table.json": `{"staff":"2024-01-15T08:45:10Z"}`},
		puts:    make(map[string]string),
	}

	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	store, err := NewS3Store(log, &Config{
		Endpoint:        u.Host,
		Region:          "us-east-1",
		AccessKeyID:     "test",
		SecretAccessKey: "testsecret",
		UseSSL:          false,
	})
	require.NoError(t, err)

	return store, fake
}

func TestS3Store_PutObject(t *testing.T) {
	store, fake := newTestS3Store(t)
	ctx := context.Background()

	require.NoError(t, store.PutObject(ctx, "ingestion", "totesys/staff.csv", []byte("a,b\n")))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "text/csv", fake.puts["totesys/staff.csv"])
}

func TestS3Store_PutObjectMissingBucket(t *testing.T) {
	store, _ := newTestS3Store(t)

	err := store.PutObject(context.Background(), "missing", "staff.json", []byte(`[]`))
	require.Error(t, err)
	assert.Equal(t, errkind.StorageBackend, errkind.Of(err))
	assert.Equal(t,
		"an error occurred (NoSuchBucket) when calling the PutObject operation: The specified bucket does not exist",
		err.Error())
}

func TestS3Store_GetObject(t *testing.T) {
	store, _ := newTestS3Store(t)
	ctx := context.Background()

	data, err := store.GetObject(ctx, "ingestion", "timestamp_table.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"staff":"2024-01-15T08:45:10Z"}`, string(data))

	_, err = store.GetObject(ctx, "ingestion", "nope.json")
	assert.Equal(t, errkind.NotFound, errkind.Of(err))
}

func TestS3Store_BucketExists(t *testing.T) {
	store, _ := newTestS3Store(t)
	ctx := context.Background()

	ok, err := store.BucketExists(ctx, "ingestion")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.BucketExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestS3Store_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(server.URL, "http://")
	server.Close()

	store, err := NewS3Store(logrus.New(), &Config{
		Endpoint: addr, Region: "us-east-1", AccessKeyID: "a", SecretAccessKey: "b",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = store.PutObject(ctx, "ingestion", "staff.json", []byte(`[]`))
	require.Error(t, err)
	assert.Equal(t, errkind.Connectivity, errkind.Of(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind errkind.Kind
	}{
		{"no such key", minio.ErrorResponse{Code: "NoSuchKey"}, errkind.NotFound},
		{"no such bucket", minio.ErrorResponse{Code: "NoSuchBucket"}, errkind.StorageBackend},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied"}, errkind.StorageBackend},
		{"wrapped code", fmt.Errorf("put: %w", minio.ErrorResponse{Code: "InvalidAccessKeyId"}), errkind.StorageBackend},
		{"unknown code", minio.ErrorResponse{Code: "InternalError"}, errkind.Backend},
		{"no code", errors.New("something odd"), errkind.Backend},
		{"canceled", context.Canceled, errkind.Connectivity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, errkind.Of(classify("PutObject", tt.err)))
		})
	}

	assert.NoError(t, classify("PutObject", nil))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("a/b.json"))
	assert.Equal(t, "text/csv", contentType("b.csv"))
	assert.Equal(t, "application/vnd.apache.parquet", contentType("b.parquet"))
	assert.Equal(t, "application/octet-stream", contentType("b"))
}
