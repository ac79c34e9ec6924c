package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. The HTTP boundary maps each one to a status code.
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrNotFound            = errors.New("politician not found")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMalformedUpstream   = errors.New("malformed upstream response")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
