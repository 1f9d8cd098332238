package grablib

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL is returned when a submitted URL cannot be parsed or
	// uses an unsupported scheme.
	ErrInvalidURL = errors.New("invalid download url")

	// ErrDownloadNotFound is returned when no download exists for the
	// given id, neither in memory nor in the state store.
	ErrDownloadNotFound = errors.New("download not found")

	// ErrInvalidConcurrency is returned when a non-positive concurrency
	// limit is passed to the queue.
	ErrInvalidConcurrency = errors.New("max concurrent downloads must be at least 1")

	// ErrNotFound is the terminal error for a 404 response.
	ErrNotFound = errors.New("resource not found")

	// ErrForbidden is the terminal error for a 401/403 response.
	ErrForbidden = errors.New("access to resource forbidden")

	// ErrRangesNotSupported indicates the server does not accept byte
	// ranges; the download falls back to a single chunk and worker.
	ErrRangesNotSupported = errors.New("server does not accept range requests")
)

// NetworkError wraps a transient transport failure (timeout, connection
// reset, unexpected status code). NetworkErrors are retried under the
// retry policy.
type NetworkError struct {
	Op   string
	Code int
	Err  error
}

func (e *NetworkError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: unexpected status code %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IOError wraps a disk write or lock failure. It terminates the worker
// that caused it without aborting its siblings.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
