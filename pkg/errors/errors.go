// Package errors defines the sentinel errors shared by the indexer, the
// snapshot store and the query engine, plus an AppError wrapper that carries
// an HTTP status for the presentation layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotInitialized       = errors.New("index not initialized")
	ErrInconsistentSnapshot = errors.New("inconsistent snapshot")
	ErrBuildInProgress      = errors.New("index build already in progress")
	ErrInvalidYearFormat    = errors.New("invalid year format")
	ErrSnapshotNotFound     = errors.New("snapshot not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInternal             = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error chain to the status code the search API
// reports. "No index yet" is a 503 so clients can tell it apart from an
// empty result set.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidYearFormat):
		return http.StatusBadRequest
	case errors.Is(err, ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBuildInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Is and As re-export the standard helpers so callers importing this
// package under its usual alias need not import both.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
