package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/ethpandaops/deltastage/pkg/errkind"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// S3Store implements ObjectStore over any S3-compatible endpoint using minio-go
type S3Store struct {
	log    logrus.FieldLogger
	client *minio.Client
}

// NewS3Store creates an S3 store. Without static keys it falls back to the AWS environment,
// the shared credentials file and the instance role, in that order.
func NewS3Store(log logrus.FieldLogger, cfg *Config) (*S3Store, error) {
	var creds *credentials.Credentials

	if cfg.AccessKeyID != "" {
		creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.FileAWSCredentials{},
			&credentials.IAM{Client: &http.Client{Transport: http.DefaultTransport}},
		})
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errkind.New(errkind.Connectivity, "create s3 client", err)
	}

	return &S3Store{
		log:    log.WithField("component", "s3_store"),
		client: client,
	}, nil
}

func (s *S3Store) BucketExists(ctx context.Context, bucket string) (bool, error) {
	if bucket == "" {
		return false, nil
	}

	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, classify("HeadBucket", err)
	}

	return exists, nil
}

func (s *S3Store) PutObject(ctx context.Context, bucket, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	info, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(key),
	})
	if err != nil {
		return classify("PutObject", err)
	}

	s.log.WithFields(logrus.Fields{
		"bucket": bucket,
		"key":    key,
		"etag":   info.ETag,
		"bytes":  info.Size,
	}).Debug("Wrote object")

	return nil
}

func (s *S3Store) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify("GetObject", err)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classify("GetObject", err)
	}

	return data, nil
}

func (s *S3Store) Location(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".parquet":
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}

var _ ObjectStore = (*S3Store)(nil)
