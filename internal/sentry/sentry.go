// Package sentry wires the Sentry SDK to a Better Stack errors backend and
// filters which failures are worth an event.
package sentry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/garyellow/nycu-course-go/internal/ctxutil"
	domerrors "github.com/garyellow/nycu-course-go/internal/errors"
)

// Config holds Sentry configuration.
type Config struct {
	// Token is the Better Stack Errors application token.
	Token string

	// Host is the ingesting host, e.g. "errors.betterstack.com".
	Host string

	Environment string
	Release     string

	// SampleRate is the share of events sent (0 means 1.0).
	SampleRate float64
}

// Initialize sets up the global Sentry client. An empty Token leaves
// Sentry disabled.
func Initialize(cfg Config) error {
	if cfg.Token == "" {
		return nil
	}
	if cfg.Host == "" {
		return errors.New("sentry host is required when token is provided")
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	// Better Stack ignores the project id but the SDK requires one.
	return sentry.Init(sentry.ClientOptions{
		Dsn:              fmt.Sprintf("https://%s@%s/1", cfg.Token, cfg.Host),
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		AttachStacktrace: true,
	})
}

// Flush waits up to timeout for buffered events to be sent.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled reports whether a Sentry client is installed.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// Expected reports whether err is a routine outcome that should not be
// reported: bad input, a department list still warming, or a caller that
// went away.
func Expected(err error) bool {
	return err == nil ||
		domerrors.IsInvalidInput(err) ||
		domerrors.IsDepartmentsNotReady(err) ||
		errors.Is(err, context.Canceled)
}

// Report sends err to Sentry unless it is expected. The event is tagged
// with the request id and academic period found in ctx. The hub attached
// to ctx (by the gin middleware) is preferred over the global one.
func Report(ctx context.Context, err error) {
	if Expected(err) {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		if requestID, ok := ctxutil.GetRequestID(ctx); ok {
			scope.SetTag("request_id", requestID)
		}
		if period := ctxutil.GetPeriod(ctx); period != "" {
			scope.SetTag("acysem", period)
		}
		var upstream *domerrors.UpstreamError
		if errors.As(err, &upstream) {
			scope.SetTag("upstream_operation", upstream.Operation)
		}
		hub.CaptureException(err)
	})
}
