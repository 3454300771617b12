// Package errors defines the sentinel errors shared across the search
// engine and maps them to HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrCorpusUnavailable = errors.New("corpus unavailable")
	ErrIndexNotReady     = errors.New("index not ready")
	ErrCacheUnavailable  = errors.New("cache unavailable")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

// statusBySentinel is consulted in order; the first sentinel err wraps
// decides the status.
var statusBySentinel = []struct {
	sentinel error
	status   int
}{
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrInvalidConfig, http.StatusBadRequest},
	{ErrIndexNotReady, http.StatusServiceUnavailable},
	{ErrCorpusUnavailable, http.StatusServiceUnavailable},
	{ErrCacheUnavailable, http.StatusServiceUnavailable},
	{ErrTimeout, http.StatusServiceUnavailable},
}

// AppError attaches a client-facing message and status code to a sentinel.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// HTTPStatusCode returns the status of the outermost AppError in err's
// chain, else the status mapped to the first sentinel it wraps, else 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	for _, m := range statusBySentinel {
		if errors.Is(err, m.sentinel) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}
