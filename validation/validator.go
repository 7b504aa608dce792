// Package validation wraps go-playground/validator with the field rules and
// error messages shared by the client and configuration packages.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// Registration only fails on an empty tag or nil func.
		_ = v.RegisterValidation("base_url", validateBaseURL)
		validate = v
	})
	return validate
}

// Struct validates s against its `validate` tags. Field failures are
// returned as *Error; other failures (non-struct input) pass through.
func Struct(s any) error {
	if err := instance().Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewError(validationErrors)
		}
		return err
	}
	return nil
}

// Error lists the fields that failed validation.
type Error struct {
	Errors []FieldError
}

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Message string
	Value   string
}

// NewError converts validator errors into an *Error.
func NewError(errs validator.ValidationErrors) *Error {
	fieldErrors := make([]FieldError, 0, len(errs))
	for _, err := range errs {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   err.Namespace(),
			Message: message(err),
			Value:   fmt.Sprintf("%v", err.Value()),
		})
	}
	return &Error{Errors: fieldErrors}
}

func (e *Error) Error() string {
	switch len(e.Errors) {
	case 0:
		return "validation failed"
	case 1:
		return "validation failed: " + e.Errors[0].Message
	}
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// HasField reports whether field (matched against the end of the namespace) failed.
func (e *Error) HasField(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field || strings.HasSuffix(fe.Field, "."+field) {
			return true
		}
	}
	return false
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fmt.Sprint(fe.Value()))
	case "gte":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be > %s", fe.Field(), fe.Param())
	case "base_url":
		return fmt.Sprintf("%s must be an absolute http or https URL", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// validateBaseURL accepts absolute http(s) URLs with a host.
func validateBaseURL(fl validator.FieldLevel) bool {
	return IsBaseURL(fl.Field().String())
}

// IsBaseURL reports whether raw is an absolute http or https URL with a host.
func IsBaseURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
