// Package errors provides the notifier's error taxonomy and its mapping to
// HTTP status codes.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidPayload     ErrorCode = "INVALID_PAYLOAD"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	ErrCodeMailDispatchFailed ErrorCode = "MAIL_DISPATCH_FAILED"
	ErrCodeStoreFailed        ErrorCode = "STORE_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches any StandardError with the same code, so callers can write
// errors.Is(err, errors.ErrNotFound).
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidPayload    = &StandardError{Code: ErrCodeInvalidPayload}
	ErrNotFound          = &StandardError{Code: ErrCodeNotFound}
	ErrInvalidTransition = &StandardError{Code: ErrCodeInvalidTransition}
	ErrMailDispatch      = &StandardError{Code: ErrCodeMailDispatchFailed}
)

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidPayloadError reports a malformed request body.
func NewInvalidPayloadError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidPayload,
		Message:   "Invalid payload",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError reports an unknown resource id.
func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Retryable: false,
		Metadata:  map[string]interface{}{"id": id},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError reports a status change the lifecycle forbids.
func NewInvalidTransitionError(from, action string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Invalid transition",
		Details:   fmt.Sprintf("cannot %s an invite in status %q", action, from),
		Retryable: false,
		Metadata:  map[string]interface{}{"from": from, "action": action},
		Timestamp: time.Now().UTC(),
	}
}

// NewMailDispatchError wraps a mail transport failure. It is recorded on the
// invitation and never returned to HTTP callers.
func NewMailDispatchError(recipient string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMailDispatchFailed,
		Message:   "Mail dispatch failed",
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"to": recipient},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStoreError wraps a storage backend failure.
func NewStoreError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreFailed,
		Message:   fmt.Sprintf("Invite store %s failed", op),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError wraps anything unclassified.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Classification Helpers
// ==========================

// As extracts a *StandardError from err's chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// Normalize always returns a StandardError, wrapping foreign errors as
// INTERNAL_ERROR.
func Normalize(err error) *StandardError {
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	return NewInternalError(err)
}

// HTTPStatus maps an error to the response status the API returns for it.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	stdErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch stdErr.Code {
	case ErrCodeInvalidPayload:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidTransition:
		return http.StatusConflict
	case ErrCodeMailDispatchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether the operation may succeed when re-invoked.
func IsRetryable(err error) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Retryable
}

// GetErrorCategory groups codes for logs and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeInvalidPayload, ErrCodeInvalidTransition:
		return "CLIENT"
	case ErrCodeNotFound:
		return "NOT_FOUND"
	case ErrCodeMailDispatchFailed:
		return "EXTERNAL_SERVICE"
	case ErrCodeStoreFailed:
		return "STORAGE"
	default:
		return "INTERNAL"
	}
}
