// Package stage writes row batches and watermark snapshots to blob storage
package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethpandaops/deltastage/pkg/errkind"
	"github.com/ethpandaops/deltastage/pkg/storage"
	"github.com/sirupsen/logrus"
)

// Status is the outcome of a stage operation
type Status string

const (
	// StatusSuccess means the object was written
	StatusSuccess Status = "Success"
	// StatusFailure means the object was not written
	StatusFailure Status = "Failure"
)

// Result is the envelope returned by Stage: {"result": "Success", "location": "s3://bucket/key"}
type Result struct {
	Status   Status       `json:"result"`
	Location string       `json:"location,omitempty"`
	Kind     errkind.Kind `json:"-"`
	Err      error        `json:"-"`
}

// OK reports whether the object was written
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Writer stages payloads under deterministic keys. It never returns errors: failures are logged
// and reported in the Result so one object cannot abort the others.
type Writer struct {
	log   logrus.FieldLogger
	store storage.ObjectStore
}

// NewWriter creates a stage writer over an object store
func NewWriter(log logrus.FieldLogger, store storage.ObjectStore) *Writer {
	return &Writer{
		log:   log.WithField("component", "stage_writer"),
		store: store,
	}
}

// Stage writes payload to bucket under "<key>.<format>". Payload must be []byte, string,
// json.RawMessage or an io.Reader.
func (w *Writer) Stage(ctx context.Context, bucket, key string, format Format, payload any) Result {
	objectKey := storage.ObjectKey("", key, string(format))

	log := w.log.WithFields(logrus.Fields{
		"bucket": bucket,
		"key":    objectKey,
	})

	data, err := body(payload)
	if err == nil {
		err = w.store.PutObject(ctx, bucket, objectKey, data)
	}

	if err != nil {
		kind := errkind.Of(err)

		log.WithField("kind", kind).Error(err.Error())

		return Result{Status: StatusFailure, Kind: kind, Err: err}
	}

	location := w.store.Location(bucket, objectKey)

	log.WithFields(logrus.Fields{
		"bytes":    len(data),
		"location": location,
	}).Debug("Staged object")

	return Result{Status: StatusSuccess, Location: location}
}

func body(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	case string:
		return []byte(p), nil
	case io.Reader:
		data, err := io.ReadAll(p)
		if err != nil {
			return nil, errkind.New(errkind.Validation, "read payload", err)
		}

		return data, nil
	default:
		return nil, errkind.New(errkind.Validation, "", fmt.Errorf(
			"parameter validation failed: invalid type for parameter Body, value: %v, type: %T, "+
				"valid types: []byte, string, io.Reader", payload, payload))
	}
}
