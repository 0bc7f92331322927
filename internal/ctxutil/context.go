// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	requestIDKey contextKey = "ctxutil.requestID"
	periodKey    contextKey = "ctxutil.period"
)

// WithRequestID adds a request ID to the context for tracing.
// Request ID is generated per API request for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns the request ID and true if found, empty string and false otherwise.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok
}

// WithPeriod adds the academic period (acysem, e.g. "1121") being served.
func WithPeriod(ctx context.Context, period string) context.Context {
	return context.WithValue(ctx, periodKey, period)
}

// GetPeriod retrieves the academic period from the context.
// Returns an empty string when none was attached.
func GetPeriod(ctx context.Context) string {
	if v := ctx.Value(periodKey); v != nil {
		if period, ok := v.(string); ok {
			return period
		}
	}
	return ""
}

// PreserveTracing creates a detached context that preserves tracing values.
// The new context is independent of the parent's cancellation and deadlines.
//
// Use for async work that must outlive the request, such as name index
// updates that continue after the HTTP response is sent.
func PreserveTracing(ctx context.Context) context.Context {
	newCtx := context.Background()

	if requestID, ok := GetRequestID(ctx); ok && requestID != "" {
		newCtx = WithRequestID(newCtx, requestID)
	}
	if period := GetPeriod(ctx); period != "" {
		newCtx = WithPeriod(newCtx, period)
	}

	return newCtx
}
