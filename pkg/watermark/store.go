package watermark

import (
	"context"

	"github.com/ethpandaops/deltastage/pkg/errkind"
	"github.com/ethpandaops/deltastage/pkg/stage"
	"github.com/ethpandaops/deltastage/pkg/storage"
	"github.com/sirupsen/logrus"
)

// DefaultKey is the object name of the published watermark, staged as timestamp_table.json
const DefaultKey = "timestamp_table"

// Store loads and publishes the durable watermark
type Store interface {
	// Load returns the published watermark, or an empty one when none exists yet
	Load(ctx context.Context) (Watermark, error)
	// Publish replaces the published watermark with a single object write
	Publish(ctx context.Context, w Watermark) stage.Result
	// Object returns the bucket and object key the watermark is published to
	Object() (bucket, key string)
}

type store struct {
	log     logrus.FieldLogger
	objects storage.ObjectStore
	writer  *stage.Writer
	bucket  string
	key     string
}

// NewStore creates a watermark store. key excludes the .json extension.
func NewStore(log logrus.FieldLogger, objects storage.ObjectStore, writer *stage.Writer, bucket, key string) Store {
	if key == "" {
		key = DefaultKey
	}

	return &store{
		log:     log.WithField("component", "watermark_store"),
		objects: objects,
		writer:  writer,
		bucket:  bucket,
		key:     key,
	}
}

func (s *store) Object() (bucket, key string) {
	return s.bucket, storage.ObjectKey("", s.key, string(stage.FormatJSON))
}

func (s *store) Load(ctx context.Context) (Watermark, error) {
	_, objectKey := s.Object()

	data, err := s.objects.GetObject(ctx, s.bucket, objectKey)
	if err != nil {
		if errkind.Is(err, errkind.NotFound) {
			s.log.WithFields(logrus.Fields{
				"bucket": s.bucket,
				"key":    objectKey,
			}).Info("No watermark published yet, extracting all tables in full")

			return Watermark{}, nil
		}

		return nil, err
	}

	w, err := Decode(data)
	if err != nil {
		return nil, err
	}

	s.log.WithField("tables", len(w)).Debug("Loaded watermark")

	return w, nil
}

func (s *store) Publish(ctx context.Context, w Watermark) stage.Result {
	data, err := Encode(w)
	if err != nil {
		s.log.WithError(err).Error("Failed to encode watermark")

		return stage.Result{Status: stage.StatusFailure, Kind: errkind.Validation, Err: err}
	}

	return s.writer.Stage(ctx, s.bucket, s.key, stage.FormatJSON, data)
}
