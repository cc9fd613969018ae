package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "basic error",
			appError: &AppError{Type: ErrTypeConfig, Message: "ROUTER_SCRIPT is unreadable"},
			want:     "config: ROUTER_SCRIPT is unreadable",
		},
		{
			name:     "error with code",
			appError: &AppError{Type: ErrTypeNotFound, Message: "destination not found", Code: "DEST001"},
			want:     "not_found: destination not found: code=DEST001",
		},
		{
			name:     "error with cause",
			appError: &AppError{Type: ErrTypeConnection, Message: "redis dial failed", Cause: errors.New("connection refused")},
			want:     "connection: redis dial failed: cause=connection refused",
		},
		{
			name: "context keys are sorted",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "bad mapping",
				Context: map[string]interface{}{"value": "x", "key": "foo"},
			},
			want: "validation: bad mapping: context={key=foo, value=x}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.appError.Error())
		})
	}
}

func TestAppError_Builders(t *testing.T) {
	appErr := ValidationError("invalid destination name")

	assert.Same(t, appErr, appErr.WithContext("destination", "foo"))
	assert.Same(t, appErr, appErr.WithCode("V1"))
	assert.Equal(t, "foo", appErr.Context["destination"])
	assert.Equal(t, "V1", appErr.Code)
}

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name    string
		err     *AppError
		errType ErrorType
		message string
		cause   error
	}{
		{"connection", ConnectionError("dial failed", cause), ErrTypeConnection, "dial failed", cause},
		{"validation", ValidationError("missing"), ErrTypeValidation, "missing", nil},
		{"config", ConfigError("bad"), ErrTypeConfig, "bad", nil},
		{"not found", NotFoundError("broker nats"), ErrTypeNotFound, "broker nats not found", nil},
		{"internal", InternalError("oops", cause), ErrTypeInternal, "oops", cause},
		{"timeout", TimeoutError("publish"), ErrTypeTimeout, "timeout during publish", nil},
		{"unavailable", UnavailableError("endpoint foo", cause), ErrTypeUnavailable, "endpoint foo is unavailable", cause},
		{"rate limit", RateLimitError("input"), ErrTypeRateLimit, "rate limit exceeded for input", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.errType, tt.err.Type)
			assert.Equal(t, tt.message, tt.err.Message)
			assert.Equal(t, tt.cause, tt.err.Unwrap())
		})
	}
}

func TestIsType(t *testing.T) {
	wrapped := fmt.Errorf("sending: %w", UnavailableError("endpoint", nil))

	assert.True(t, IsType(wrapped, ErrTypeUnavailable))
	assert.False(t, IsType(wrapped, ErrTypeTimeout))
	assert.False(t, IsType(errors.New("plain"), ErrTypeInternal))
	assert.False(t, IsType(nil, ErrTypeInternal))
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrorType(""), GetType(nil))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain")))
	assert.Equal(t, ErrTypeConfig, GetType(fmt.Errorf("wrap: %w", ConfigError("x"))))
}
