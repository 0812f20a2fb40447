// Package telemetry provides optional error reporting to Sentry. It is
// disabled unless explicitly enabled in configuration, and it never blocks
// the caller: capture failures only lose the report.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/casetrail/casetrail/internal/conf"
	"github.com/casetrail/casetrail/internal/errors"
	"github.com/casetrail/casetrail/internal/logging"
)

const flushTimeout = 2 * time.Second

var enabled bool

// Init initializes the Sentry SDK when telemetry is enabled in settings and
// registers the capture hook with the errors package. Safe to call when
// telemetry is disabled; it is then a no-op.
func Init(settings *conf.Settings) error {
	if !settings.Telemetry.Enabled {
		return nil
	}
	if settings.Telemetry.DSN == "" {
		return fmt.Errorf("telemetry enabled but no DSN configured")
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Telemetry.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		ServerName:       "", // never report the hostname
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	enabled = true
	errors.SetCaptureHook(capture)
	logging.Info("telemetry initialized")
	return nil
}

// Shutdown flushes buffered events. Call during graceful shutdown.
func Shutdown() {
	if !enabled {
		return
	}
	sentry.Flush(flushTimeout)
}

// capture forwards an enhanced error to Sentry with category and component
// tags. Context values are attached as extra data; the engine only puts
// identifiers and enum values in error context, never record content.
func capture(ee *errors.EnhancedError) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("component", ee.Component)
		for k, v := range ee.GetContext() {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(ee.Err)
	})
}

// scrubEvent clears user identifying fields before an event leaves the node.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	return event
}
