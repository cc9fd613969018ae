package validation

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"message-router/internal/common/errors"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// BrokerTypes lists every broker the binder can be wired to
var BrokerTypes = []string{"memory", "redis", "rabbitmq", "kafka", "aws", "gcp", "nats"}

// CentralizedValidator wraps go-playground/validator with the router's custom tags
type CentralizedValidator struct {
	validator *validator.Validate
}

// FieldError is a single failed rule
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

func NewCentralizedValidator() *CentralizedValidator {
	v := validator.New()
	registerRouterValidators(v)

	// report env names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("env"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &CentralizedValidator{validator: v}
}

// ValidateStruct validates a struct using its `validate` tags
func (cv *CentralizedValidator) ValidateStruct(s interface{}) error {
	if err := cv.validator.Struct(s); err != nil {
		return cv.formatValidationErrors(err)
	}
	return nil
}

// ValidateVar validates a single value against a tag expression
func (cv *CentralizedValidator) ValidateVar(field interface{}, tag string) error {
	if err := cv.validator.Var(field, tag); err != nil {
		return cv.formatValidationErrors(err)
	}
	return nil
}

func (cv *CentralizedValidator) formatValidationErrors(err error) error {
	fieldErrors := cv.extractFieldErrors(err)
	if len(fieldErrors) == 1 {
		return errors.ValidationError(fieldErrors[0].Message)
	}

	messages := lo.Map(fieldErrors, func(e FieldError, _ int) string { return e.Message })
	return errors.ValidationError(fmt.Sprintf("validation failed: %s", strings.Join(messages, "; ")))
}

func (cv *CentralizedValidator) extractFieldErrors(err error) []FieldError {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "unknown", Tag: "error", Message: err.Error()}}
	}

	fieldErrors := make([]FieldError, 0, len(validationErrs))
	for _, fieldError := range validationErrs {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   fieldError.Field(),
			Tag:     fieldError.Tag(),
			Value:   fmt.Sprintf("%v", fieldError.Value()),
			Message: formatFieldError(fieldError),
			Param:   fieldError.Param(),
		})
	}
	return fieldErrors
}

func formatFieldError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", err.Field())
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s", err.Field(), err.Param())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", err.Field(), err.Param())
	case "hostname_port":
		return fmt.Sprintf("field '%s' must be host:port", err.Field())
	case "broker_type":
		return fmt.Sprintf("field '%s' must be a valid broker type (%s)", err.Field(), strings.Join(BrokerTypes, ", "))
	case "positive_duration":
		return fmt.Sprintf("field '%s' must be a positive duration", err.Field())
	case "destination_name":
		return fmt.Sprintf("field '%s' must be a destination name without whitespace", err.Field())
	default:
		return fmt.Sprintf("field '%s' failed validation: %s", err.Field(), err.Tag())
	}
}

func registerRouterValidators(v *validator.Validate) {
	_ = v.RegisterValidation("broker_type", func(fl validator.FieldLevel) bool {
		return lo.Contains(BrokerTypes, fl.Field().String())
	})

	// accepts time.Duration fields and duration strings
	_ = v.RegisterValidation("positive_duration", func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() == reflect.String {
			d, err := time.ParseDuration(field.String())
			return err == nil && d > 0
		}
		if field.Kind() == reflect.Int64 {
			return field.Int() > 0
		}
		return false
	})

	_ = v.RegisterValidation("destination_name", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		return name != "" && !strings.ContainsAny(name, " \t\r\n")
	})
}

var globalValidator = NewCentralizedValidator()

// ValidateStruct validates a struct with the shared validator
func ValidateStruct(s interface{}) error {
	return globalValidator.ValidateStruct(s)
}

// ValidateVar validates a value with the shared validator
func ValidateVar(field interface{}, tag string) error {
	return globalValidator.ValidateVar(field, tag)
}
