// Package telemetry initialises Sentry error reporting and logs host facts at
// startup.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/gardenlab/pestnet-go/internal/buildinfo"
	"github.com/gardenlab/pestnet-go/internal/errors"
	"github.com/gardenlab/pestnet-go/internal/logger"
)

const flushTimeout = 2 * time.Second

// InitSentry enables error reporting when dsn is set and installs the
// reporter used by the errors package. The returned func flushes pending
// events; it is a no-op when reporting is disabled.
func InitSentry(dsn string, info *buildinfo.Context, debug bool) (func(), error) {
	if dsn == "" {
		errors.SetTelemetryReporter(nil)
		return func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		SampleRate:       1.0,
		Debug:            debug,
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",
		Release:          info.Release(),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return func() {}, fmt.Errorf("sentry initialization failed: %w", err)
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	GetLogger().Info("error reporting enabled", logger.String("release", info.Release()))

	return func() {
		errors.SetTelemetryReporter(nil)
		if !sentry.Flush(flushTimeout) {
			GetLogger().Warn("timed out flushing error reports")
		}
	}, nil
}

// applyPrivacyFilters strips host and user identity from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	if event == nil {
		return nil
	}
	event.User = sentry.User{}
	event.ServerName = ""
	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
	}
	event.Request = nil
	return event
}
