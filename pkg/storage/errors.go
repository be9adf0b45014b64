package storage

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ethpandaops/deltastage/pkg/errkind"
	"github.com/minio/minio-go/v7"
)

// S3 error codes the stores report
const (
	CodeNoSuchBucket = "NoSuchBucket"
	CodeNoSuchKey    = "NoSuchKey"
)

// kindByCode maps S3 error codes to error kinds
//
//nolint:gochecknoglobals // Read-only lookup table
var kindByCode = map[string]errkind.Kind{
	CodeNoSuchKey:           errkind.NotFound,
	CodeNoSuchBucket:        errkind.StorageBackend,
	"AccessDenied":          errkind.StorageBackend,
	"AllAccessDisabled":     errkind.StorageBackend,
	"InvalidAccessKeyId":    errkind.StorageBackend,
	"InvalidBucketName":     errkind.StorageBackend,
	"SignatureDoesNotMatch": errkind.StorageBackend,
	"EntityTooLarge":        errkind.Validation,
	"InvalidArgument":       errkind.Validation,
	"SlowDown":              errkind.Connectivity,
	"RequestTimeout":        errkind.Connectivity,
}

// classify wraps a store error with a kind derived from its S3 error code. Errors without a code
// fall back to transport classification and then to the generic backend kind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var resp minio.ErrorResponse
	if !errors.As(err, &resp) || resp.Code == "" {
		return errkind.New(errkind.Classify(err), op, err)
	}

	kind, ok := kindByCode[resp.Code]
	if !ok {
		kind = errkind.Backend
	}

	return errkind.New(kind, "", fmt.Errorf("an error occurred (%s) when calling the %s operation: %w", resp.Code, op, err))
}

func noSuchBucket(bucket string) error {
	return minio.ErrorResponse{
		Code:       CodeNoSuchBucket,
		Message:    "The specified bucket does not exist",
		BucketName: bucket,
		StatusCode: http.StatusNotFound,
	}
}

func noSuchKey(bucket, key string) error {
	return minio.ErrorResponse{
		Code:       CodeNoSuchKey,
		Message:    "The specified key does not exist.",
		BucketName: bucket,
		Key:        key,
		StatusCode: http.StatusNotFound,
	}
}
