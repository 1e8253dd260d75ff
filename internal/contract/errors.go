package contract

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors shared by the source client, the store and the pipeline.
var (
	// ErrFetchTimeout is returned when a remote fetch exceeds its deadline. Retryable.
	ErrFetchTimeout = errors.New("fetch timed out")

	// ErrRateLimited is returned when the source API throttles requests. Retryable.
	ErrRateLimited = errors.New("rate limited by source API")

	// ErrNotFound is returned for an absent repository, user or file.
	ErrNotFound = errors.New("not found")

	// ErrRepositoryNotFound is returned when the analysis target itself does not exist.
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrStoreWrite is returned when a snapshot could not be durably saved.
	ErrStoreWrite = errors.New("snapshot store write failed")

	// ErrAnalysisUnavailable is returned when the source API cannot be reached at all.
	ErrAnalysisUnavailable = errors.New("analysis unavailable, try again later")

	// ErrNoStoredSnapshot is returned when there is no snapshot to diff against.
	ErrNoStoredSnapshot = errors.New("no stored snapshot")
)

// FetchError wraps a failed remote call with the operation and path involved.
type FetchError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may back off and try again.
func (e *FetchError) Retryable() bool {
	return IsRetryable(e.Err)
}

// NewFetchError wraps err for op and path, mapping deadline errors to ErrFetchTimeout.
func NewFetchError(op, path string, err error) *FetchError {
	return &FetchError{Op: op, Path: path, Err: NormalizeFetchError(err)}
}

// NormalizeFetchError maps context deadlines and network timeouts to ErrFetchTimeout.
func NormalizeFetchError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrFetchTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrFetchTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrFetchTimeout, err)
	}
	return err
}

// IsRetryable reports whether err is a transient source condition.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrFetchTimeout) || errors.Is(err, ErrRateLimited)
}

// IsNotFound reports whether err means the resource is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
