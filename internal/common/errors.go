package common

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is matched by every ValidationErrors value.
var ErrValidation = errors.New("validation error")

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects field failures found before a request is sent.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Validator accumulates ValidationErrors with chained checks.
type Validator struct {
	errs ValidationErrors
}

// Required fails when value is blank.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.errs = append(v.errs, ValidationError{Field: field, Message: "is required"})
	}
	return v
}

// NotEmpty fails when n is zero; used for multi-select fields.
func (v *Validator) NotEmpty(field string, n int) *Validator {
	if n == 0 {
		v.errs = append(v.errs, ValidationError{Field: field, Message: "select at least one"})
	}
	return v
}

// Check adds a failure for field when ok is false.
func (v *Validator) Check(ok bool, field, message string) *Validator {
	if !ok {
		v.errs = append(v.errs, ValidationError{Field: field, Message: message})
	}
	return v
}

// Err returns nil when every check passed.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return v.errs
}
