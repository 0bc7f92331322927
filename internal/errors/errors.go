// Package errors provides domain-specific error types and sentinel errors
// for the course catalog service.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors. Check them with errors.Is.
var (
	// ErrUpstreamUnavailable means the catalog API could not be reached or
	// answered with a non-success status. Such results are never cached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedPayload means the catalog API answered with a body that
	// does not have the expected shape.
	ErrMalformedPayload = errors.New("malformed upstream payload")

	// ErrCacheUnavailable means the key-value store could not be read or written.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrInvalidInput indicates the caller provided invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDepartmentsNotReady means the department list for a period has not
	// been warmed yet.
	ErrDepartmentsNotReady = errors.New("departments not ready")
)

// IsUpstreamUnavailable reports whether err wraps ErrUpstreamUnavailable.
func IsUpstreamUnavailable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}

// IsInvalidInput reports whether err is an input validation failure.
func IsInvalidInput(err error) bool {
	var ve *ValidationError
	return errors.Is(err, ErrInvalidInput) || errors.As(err, &ve)
}

// IsDepartmentsNotReady reports whether err wraps ErrDepartmentsNotReady.
func IsDepartmentsNotReady(err error) bool {
	return errors.Is(err, ErrDepartmentsNotReady)
}

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// UpstreamError describes a failed catalog API call.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream %s failed (status=%d): %v", e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s failed: %v", e.Operation, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError wraps err as an unavailable-upstream failure for operation.
func NewUpstreamError(operation string, statusCode int, err error) *UpstreamError {
	if err == nil {
		err = ErrUpstreamUnavailable
	} else if !errors.Is(err, ErrUpstreamUnavailable) {
		err = fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return &UpstreamError{
		Operation:  operation,
		StatusCode: statusCode,
		Err:        err,
	}
}
