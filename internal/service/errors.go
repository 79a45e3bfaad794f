package service

import (
	"errors"
	"log/slog"

	"github.com/harryheman/slack-clone/internal/metrics"
)

// Unauthenticated requests never reach a service; the auth middleware
// rejects them.
var (
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrBadRequest  = errors.New("bad request")
	ErrUnavailable = errors.New("unavailable")
)

// ServiceError wraps a sentinel error with a specific code and message for the handler to use.
type ServiceError struct {
	Err     error
	Code    string
	Message string
}

func (e *ServiceError) Error() string { return e.Message }
func (e *ServiceError) Unwrap() error { return e.Err }

// NewError creates a ServiceError wrapping the given sentinel.
func NewError(sentinel error, code, message string) *ServiceError {
	return &ServiceError{Err: sentinel, Code: code, Message: message}
}

// Convenience constructors for common error types.

func NotFound(code, message string) *ServiceError {
	return NewError(ErrNotFound, code, message)
}

// Forbidden is returned when the caller is not a member of the workspace
// that owns the target, or does not own the message it tries to change.
func Forbidden(code, message string) *ServiceError {
	return NewError(ErrForbidden, code, message)
}

func BadRequest(code, message string) *ServiceError {
	return NewError(ErrBadRequest, code, message)
}

// Unavailable reports a store or storage failure the caller may retry.
func Unavailable(code, message string) *ServiceError {
	return NewError(ErrUnavailable, code, message)
}

// storeFailure logs err and hides it behind a retryable error.
func storeFailure(op string, err error, attrs ...any) *ServiceError {
	slog.Error("store failure", append([]any{"op", op, "error", err}, attrs...)...)
	metrics.StoreFailures.WithLabelValues(op).Inc()
	return Unavailable("STORE_UNAVAILABLE", "service temporarily unavailable, please retry")
}
