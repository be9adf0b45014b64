// Package errkind provides the error kinds shared by the extraction components
package errkind

import (
	"context"
	"database/sql/driver"
	"errors"
	"io/fs"
	"net"
	"net/url"
)

// Kind classifies a failure so callers can decide whether to recover, retry or abort
type Kind string

const (
	// Connectivity means the database or object store could not be reached
	Connectivity Kind = "connectivity"
	// NotFound means the requested object does not exist
	NotFound Kind = "not_found"
	// Decode means stored content could not be parsed
	Decode Kind = "decode"
	// Validation means a caller passed a malformed value
	Validation Kind = "validation"
	// StorageBackend means the storage provider rejected the request (missing bucket, denied access)
	StorageBackend Kind = "storage_backend"
	// Conflict means another run holds the pipeline lock
	Conflict Kind = "conflict"
	// Backend is the fallback when no structured information is available
	Backend Kind = "backend"
)

// Error carries a Kind alongside the operation that failed
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New wraps err with the given kind and operation
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}

	if e.Op == "" {
		return e.Err.Error()
	}

	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Of returns the kind of the first *Error in err's chain, or Backend
func Of(err error) Kind {
	if err == nil {
		return ""
	}

	var kindErr *Error
	if errors.As(err, &kindErr) {
		return kindErr.Kind
	}

	return Backend
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && Of(err) == kind
}

// Classify derives a kind from well-known transport and filesystem errors.
// It returns Backend when none of them match.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var kindErr *Error
	if errors.As(err, &kindErr) {
		return kindErr.Kind
	}

	if errors.Is(err, fs.ErrNotExist) {
		return NotFound
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return Connectivity
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Connectivity
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return Connectivity
	}

	return Backend
}

// Wrap attaches the classified kind of err, keeping an existing kind intact
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}

	return New(Classify(err), op, err)
}
