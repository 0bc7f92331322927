package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		checkFn  func(error) bool
		expected bool
	}{
		{
			name:     "ErrUpstreamUnavailable is recognized",
			err:      ErrUpstreamUnavailable,
			checkFn:  IsUpstreamUnavailable,
			expected: true,
		},
		{
			name:     "Wrapped ErrUpstreamUnavailable is recognized",
			err:      fmt.Errorf("get_cos_list: %w", ErrUpstreamUnavailable),
			checkFn:  IsUpstreamUnavailable,
			expected: true,
		},
		{
			name:     "Different error is not upstream",
			err:      ErrCacheUnavailable,
			checkFn:  IsUpstreamUnavailable,
			expected: false,
		},
		{
			name:     "ValidationError counts as invalid input",
			err:      NewValidationError("query", "must not be empty"),
			checkFn:  IsInvalidInput,
			expected: true,
		},
		{
			name:     "Departments not ready is recognized",
			err:      fmt.Errorf("period 1121: %w", ErrDepartmentsNotReady),
			checkFn:  IsDepartmentsNotReady,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.checkFn(tt.err); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("acysem", "must end in 1, 2 or X")

	want := "validation failed on acysem: must end in 1, 2 or X"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("expected ValidationError to match ErrInvalidInput")
	}
}

func TestUpstreamError(t *testing.T) {
	t.Run("with status", func(t *testing.T) {
		err := NewUpstreamError("get_cos_list", 503, nil)
		if !IsUpstreamUnavailable(err) {
			t.Error("expected upstream sentinel to match")
		}
		if err.Error() != "upstream get_cos_list failed (status=503): upstream unavailable" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("wrapping a transport error", func(t *testing.T) {
		err := NewUpstreamError("get_acysem", 0, context.DeadlineExceeded)
		if !IsUpstreamUnavailable(err) {
			t.Error("expected upstream sentinel to match")
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Error("expected cause to be preserved")
		}
		var ue *UpstreamError
		if !errors.As(err, &ue) || ue.Operation != "get_acysem" {
			t.Errorf("errors.As failed: %+v", ue)
		}
	})
}
