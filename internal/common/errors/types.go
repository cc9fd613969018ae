package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType classifies an AppError
type ErrorType string

const (
	// ErrTypeConnection covers broker connectivity failures
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeValidation covers rejected input such as malformed settings
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig covers invalid or incomplete configuration
	ErrTypeConfig ErrorType = "config"
	// ErrTypeNotFound covers unknown destinations and brokers
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeInternal covers unexpected failures
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeTimeout covers operations that ran out of time
	ErrTypeTimeout ErrorType = "timeout"
	// ErrTypeUnavailable covers endpoints that refuse work, e.g. an open circuit
	ErrTypeUnavailable ErrorType = "unavailable"
	// ErrTypeRateLimit covers throttled inbound traffic
	ErrTypeRateLimit ErrorType = "rate_limit"
)

// AppError is the structured error used outside of the routing core
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair and returns the same error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode sets a machine readable code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

func ConnectionError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeConnection, Message: msg, Cause: cause}
}

func ValidationError(msg string) *AppError {
	return &AppError{Type: ErrTypeValidation, Message: msg}
}

func ConfigError(msg string) *AppError {
	return &AppError{Type: ErrTypeConfig, Message: msg}
}

// NotFoundError reports a missing resource, e.g. NotFoundError("broker kafka")
func NotFoundError(resource string) *AppError {
	return &AppError{Type: ErrTypeNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

func InternalError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeInternal, Message: msg, Cause: cause}
}

func TimeoutError(operation string) *AppError {
	return &AppError{Type: ErrTypeTimeout, Message: fmt.Sprintf("timeout during %s", operation)}
}

func UnavailableError(resource string, cause error) *AppError {
	return &AppError{Type: ErrTypeUnavailable, Message: fmt.Sprintf("%s is unavailable", resource), Cause: cause}
}

func RateLimitError(resource string) *AppError {
	return &AppError{Type: ErrTypeRateLimit, Message: fmt.Sprintf("rate limit exceeded for %s", resource)}
}

// IsType reports whether any AppError in err's chain has the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Type == errType
}

// GetType returns the type of the first AppError in err's chain.
// Plain errors are reported as internal.
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}
	return appErr.Type
}
