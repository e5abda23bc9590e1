// Package telemetry reports errors and playback timings to Sentry.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Reporter receives the failures and playback outcomes a session produces.
type Reporter interface {
	CaptureError(ctx context.Context, err error, tags map[string]string)
	RecordPlayback(ctx context.Context, notes int, duration time.Duration, outcome string)
	Flush(timeout time.Duration)
}

// Nop discards everything.
type Nop struct{}

func (Nop) CaptureError(context.Context, error, map[string]string)     {}
func (Nop) RecordPlayback(context.Context, int, time.Duration, string) {}
func (Nop) Flush(time.Duration)                                        {}

type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentry builds a reporter on its own hub so several sessions can report
// with different settings.
func NewSentry(opts sentry.ClientOptions) (*SentryReporter, error) {
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("sentry client: %w", err)
	}
	return &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// New returns Nop when dsn is empty.
func New(dsn, environment, release string) (Reporter, error) {
	if dsn == "" {
		return Nop{}, nil
	}
	return NewSentry(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
	})
}

func (r *SentryReporter) CaptureError(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	// A cloned hub per capture keeps concurrent callers' tags apart.
	hub := r.hub.Clone()
	scope := hub.Scope()
	if span := sentry.SpanFromContext(ctx); span != nil {
		scope.SetSpan(span)
	}
	for k, v := range tags {
		scope.SetTag(k, v)
	}
	hub.CaptureException(err)
}

// RecordPlayback records one playback as a span on the reporter's hub.
func (r *SentryReporter) RecordPlayback(ctx context.Context, notes int, duration time.Duration, outcome string) {
	ctx = sentry.SetHubOnContext(ctx, r.hub)
	span := sentry.StartSpan(ctx, "playback")
	defer span.Finish()

	span.SetTag("outcome", outcome)
	span.SetData("notes", notes)
	span.SetData("duration_ms", duration.Milliseconds())

	switch outcome {
	case "ended":
		span.Status = sentry.SpanStatusOK
	case "cancelled":
		span.Status = sentry.SpanStatusCanceled
	default:
		span.Status = sentry.SpanStatusInternalError
	}
	span.Description = fmt.Sprintf("Playback: %d notes, %s", notes, outcome)
}

func (r *SentryReporter) Flush(timeout time.Duration) {
	r.hub.Flush(timeout)
}
