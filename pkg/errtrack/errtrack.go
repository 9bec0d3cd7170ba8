// Package errtrack reports unexpected failures to Sentry. Every function is a
// no-op until Init has been called with a non-empty DSN.
package errtrack

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/onlydeal/DevHub/pkg/logger"
)

var enabled atomic.Bool

// Init configures the Sentry client. An empty DSN disables reporting.
func Init(dsn, environment, release string) error {
	if dsn == "" {
		enabled.Store(false)
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	}); err != nil {
		return err
	}
	enabled.Store(true)
	return nil
}

// Enabled reports whether events are being sent.
func Enabled() bool {
	return enabled.Load()
}

// Flush waits up to timeout for buffered events to be delivered.
func Flush(timeout time.Duration) {
	if !enabled.Load() {
		return
	}
	sentry.Flush(timeout)
}

// CaptureError sends err tagged with the request correlation id.
func CaptureError(ctx context.Context, err error) {
	if !enabled.Load() || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		if id := logger.CorrelationIDFromContext(ctx); id != "" {
			scope.SetTag("correlation_id", id)
		}
		if id := logger.UserIDFromContext(ctx); id != "" {
			scope.SetUser(sentry.User{ID: id})
		}
		sentry.CaptureException(err)
	})
}

// CapturePanic sends a recovered panic value along with its stack.
func CapturePanic(ctx context.Context, rec any, stack []byte) {
	if !enabled.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		if id := logger.CorrelationIDFromContext(ctx); id != "" {
			scope.SetTag("correlation_id", id)
		}
		scope.SetExtra("panic", rec)
		scope.SetExtra("stack", string(stack))
		sentry.CaptureMessage("panic in request")
	})
}
