package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewValidationError("missing field", "agency"), http.StatusBadRequest},
		{"not found", NewNotFoundError("Submission", "serial: AZ-0001"), http.StatusNotFound},
		{"pool exhausted", NewPoolExhaustedError("General"), http.StatusNotFound},
		{"serial conflict", NewSerialConflictError("AZ-0001"), http.StatusConflict},
		{"status conflict", NewStatusConflictError("Issued", "Declined"), http.StatusConflict},
		{"payment conflict", NewPaymentConflictError("sub-1", "2024-06-01"), http.StatusConflict},
		{"database", NewDatabaseError("insert submission", fmt.Errorf("connection reset")), http.StatusInternalServerError},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewDatabaseError("query", fmt.Errorf("timeout"))))
	assert.True(t, IsRetryable(NewMailError(fmt.Errorf("relay down"))))
	assert.True(t, IsRetryable(NewTimeoutError("s3", fmt.Errorf("deadline exceeded"))))
	assert.False(t, IsRetryable(NewValidationError("bad input", "")))
	assert.False(t, IsRetryable(NewSerialConflictError("AZ-0001")))
	assert.False(t, IsRetryable(fmt.Errorf("plain")))
}

func TestIsMatchesWrappedCode(t *testing.T) {
	wrapped := fmt.Errorf("claiming serial: %w", NewSerialConflictError("AZ-0001"))

	assert.True(t, Is(wrapped, ErrCodeSerialConflict))
	assert.False(t, Is(wrapped, ErrCodeNotFound))
	assert.False(t, Is(fmt.Errorf("plain"), ErrCodeSerialConflict))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Serial number already issued", UserMessage(NewSerialConflictError("AZ-0001")))
	assert.Equal(t, "Internal Server Error", UserMessage(fmt.Errorf("raw driver error")))
}
