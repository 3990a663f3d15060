// Package errors provides the standardized error taxonomy for the
// monitoring backoffice: validation, not-found, conflict, and upstream
// failures, each carrying an HTTP status and a retryable flag.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeNotFound         ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodePoolExhausted    ErrorCode = "SERIAL_POOL_EXHAUSTED"
	ErrCodeSerialConflict   ErrorCode = "SERIAL_ALREADY_ISSUED"
	ErrCodeStatusConflict   ErrorCode = "STATUS_TRANSITION_REJECTED"
	ErrCodePaymentConflict  ErrorCode = "PAYMENT_PERIOD_RECORDED"
	ErrCodeDatabaseFailed   ErrorCode = "DATABASE_OPERATION_FAILED"
	ErrCodeStorageFailed    ErrorCode = "STORAGE_OPERATION_FAILED"
	ErrCodeMailFailed       ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeTimeout          ErrorCode = "UPSTREAM_TIMEOUT"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// AppError represents a structured application error.
type AppError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("AppError[%s]: %s", e.Code, e.Message)
}

// ==========================
// Constructors
// ==========================

// NewValidationError creates a non-retryable bad-input error.
func NewValidationError(message, details string) *AppError {
	return &AppError{
		Code:      ErrCodeValidationFailed,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable missing-resource error.
func NewNotFoundError(resource, details string) *AppError {
	return &AppError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPoolExhaustedError signals that a serial bucket has no unissued rows.
func NewPoolExhaustedError(bucket string) *AppError {
	return &AppError{
		Code:      ErrCodePoolExhausted,
		Message:   fmt.Sprintf("No serials available for pool: %s", bucket),
		Details:   fmt.Sprintf("bucket: %s", bucket),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSerialConflictError signals a lost claim race on a serial.
func NewSerialConflictError(serial string) *AppError {
	return &AppError{
		Code:      ErrCodeSerialConflict,
		Message:   "Serial number already issued",
		Details:   fmt.Sprintf("serial: %s", serial),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStatusConflictError signals an illegal state-machine transition.
func NewStatusConflictError(from, to string) *AppError {
	return &AppError{
		Code:      ErrCodeStatusConflict,
		Message:   "Status transition not allowed",
		Details:   fmt.Sprintf("from: %s, to: %s", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPaymentConflictError signals a payment period recorded twice.
func NewPaymentConflictError(submissionID, period string) *AppError {
	return &AppError{
		Code:      ErrCodePaymentConflict,
		Message:   "Payment already recorded for this period",
		Details:   fmt.Sprintf("submission: %s, period: %s", submissionID, period),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseError creates a retryable database failure.
func NewDatabaseError(op string, err error) *AppError {
	return &AppError{
		Code:      ErrCodeDatabaseFailed,
		Message:   "Database operation failed",
		Details:   fmt.Sprintf("op: %s, error: %v", op, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageError creates a retryable object-storage failure.
func NewStorageError(op string, err error) *AppError {
	return &AppError{
		Code:      ErrCodeStorageFailed,
		Message:   "Storage operation failed",
		Details:   fmt.Sprintf("op: %s, error: %v", op, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMailError creates a retryable notification failure.
func NewMailError(err error) *AppError {
	return &AppError{
		Code:      ErrCodeMailFailed,
		Message:   "Notification delivery failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTimeoutError creates a retryable upstream timeout.
func NewTimeoutError(service string, err error) *AppError {
	return &AppError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *AppError {
	return &AppError{
		Code:      ErrCodeInternal,
		Message:   "Internal Server Error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// Classification
// ==========================

// HTTPStatus maps an error to the response status code. Validation
// failures are 400, missing resources 404, issuance/state conflicts 409,
// everything else 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeNotFound, ErrCodePoolExhausted:
		return http.StatusNotFound
	case ErrCodeSerialConflict, ErrCodeStatusConflict, ErrCodePaymentConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether the failure is transient (network, timeout,
// upstream outage) as opposed to fatal (validation, not-found, conflict).
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// UserMessage returns the human-readable message for the response
// envelope, falling back to a generic message for unexpected errors.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal Server Error"
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
