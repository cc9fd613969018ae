package validation

import (
	"fmt"
	"strings"
	"time"

	"message-router/internal/common/errors"

	"github.com/samber/lo"
)

// Validator collects errors from chained checks. Broker configs use it in their Validate methods.
type Validator struct {
	checker *CentralizedValidator
	errors  []FieldError
	prefix  string
}

func NewValidator() *Validator {
	return &Validator{checker: globalValidator}
}

// NewValidatorWithPrefix prefixes every message, e.g. "redis config: address is required"
func NewValidatorWithPrefix(prefix string) *Validator {
	return &Validator{checker: globalValidator, prefix: prefix}
}

func (v *Validator) RequireString(value, name string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.addError(name, "required", value, fmt.Sprintf("%s is required", name))
	}
	return v
}

func (v *Validator) RequirePositive(value int, name string) *Validator {
	if value <= 0 {
		v.addError(name, "min", fmt.Sprintf("%d", value), fmt.Sprintf("%s must be positive", name))
	}
	return v
}

func (v *Validator) RequireNonNegative(value int, name string) *Validator {
	if value < 0 {
		v.addError(name, "min", fmt.Sprintf("%d", value), fmt.Sprintf("%s must be non-negative", name))
	}
	return v
}

func (v *Validator) RequirePositiveDuration(value time.Duration, name string) *Validator {
	if value <= 0 {
		v.addError(name, "positive_duration", value.String(), fmt.Sprintf("%s must be a positive duration", name))
	}
	return v
}

// RequireHostPort checks a host:port pair such as a redis or nats address
func (v *Validator) RequireHostPort(value, name string) *Validator {
	if err := v.checker.ValidateVar(value, "required,hostname_port"); err != nil {
		v.addError(name, "hostname_port", value, fmt.Sprintf("%s must be host:port", name))
	}
	return v
}

// RequireURL accepts any scheme, so amqp:// and nats:// URLs pass
func (v *Validator) RequireURL(value, name string) *Validator {
	if err := v.checker.ValidateVar(value, "required,url"); err != nil {
		v.addError(name, "url", value, fmt.Sprintf("%s must be a valid URL", name))
	}
	return v
}

func (v *Validator) RequireOneOf(value string, allowed []string, name string) *Validator {
	if !lo.Contains(allowed, value) {
		v.addError(name, "oneof", value, fmt.Sprintf("%s must be one of: %s", name, strings.Join(allowed, ", ")))
	}
	return v
}

// Validate runs a custom check
func (v *Validator) Validate(fn func() error) *Validator {
	if err := fn(); err != nil {
		v.addError("custom", "custom", "", err.Error())
	}
	return v
}

func (v *Validator) ValidateIf(condition bool, fn func() error) *Validator {
	if condition {
		return v.Validate(fn)
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Fields returns the collected failures
func (v *Validator) Fields() []FieldError {
	return v.errors
}

// Error returns nil, the single failure, or all failures joined into one validation error
func (v *Validator) Error() error {
	switch len(v.errors) {
	case 0:
		return nil
	case 1:
		return errors.ValidationError(v.errors[0].Message)
	}

	messages := lo.Map(v.errors, func(e FieldError, _ int) string { return e.Message })
	return errors.ValidationError(fmt.Sprintf("validation failed: %s", strings.Join(messages, "; ")))
}

func (v *Validator) addError(field, tag, value, message string) {
	if v.prefix != "" {
		message = fmt.Sprintf("%s: %s", v.prefix, message)
		field = fmt.Sprintf("%s.%s", v.prefix, field)
	}

	v.errors = append(v.errors, FieldError{
		Field:   field,
		Tag:     tag,
		Value:   value,
		Message: message,
	})
}
