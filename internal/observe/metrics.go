// Package observe provides application-wide observability primitives for
// clubnote: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed on
// /metrics through the Prometheus exporter bridge set up by [Setup].
// Tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const meterName = "github.com/MrWong99/clubnote"

// Well-known stage names used as the "stage" attribute.
const (
	StageDecode     = "decode"
	StageTranscribe = "transcribe"
	StageAlign      = "align"
	StageDiarize    = "diarize"
	StageNormalize  = "normalize"
	StageTranslate  = "translate"
	StageExtract    = "extract"
	StagePublish    = "publish"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
type Metrics struct {
	// StageDuration tracks latency per pipeline stage. Attributes:
	//   stage, outcome ("ok", "error", "skipped")
	StageDuration metric.Float64Histogram

	// PipelineRuns counts completed pipeline runs. Attributes: flow, outcome.
	PipelineRuns metric.Int64Counter

	// SessionEvents counts chat events handled by the session dispatcher.
	// Attributes: kind, outcome ("prompt", "run", "error").
	SessionEvents metric.Int64Counter

	// ProviderRequests counts provider API calls. Attributes: provider, kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// ActiveRuns tracks pipeline runs currently in flight.
	ActiveRuns metric.Int64UpDownCounter

	// ActiveSessions tracks sessions that are collecting input (not idle).
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	//   method, path
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds. Transcription of a
// club meeting recording can take minutes, so the tail is long.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("clubnote.stage.duration",
		metric.WithDescription("Latency of a single audio-to-knowledge pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineRuns, err = m.Int64Counter("clubnote.pipeline.runs",
		metric.WithDescription("Completed pipeline runs by flow and outcome."),
	); err != nil {
		return nil, err
	}
	if met.SessionEvents, err = m.Int64Counter("clubnote.session.events",
		metric.WithDescription("Chat events handled by kind and outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("clubnote.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("clubnote.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.ActiveRuns, err = m.Int64UpDownCounter("clubnote.active_runs",
		metric.WithDescription("Number of pipeline runs in flight."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("clubnote.active_sessions",
		metric.WithDescription("Number of sessions collecting input."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("clubnote.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// Outcome classifies err for the "outcome" attribute.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return "error"
}

// RecordStage records one stage execution.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration, outcome string) {
	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	))
}

// RecordRun records a finished pipeline run.
func (m *Metrics) RecordRun(ctx context.Context, flow, outcome string) {
	m.PipelineRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("outcome", outcome),
	))
}

// RecordSessionEvent records a dispatched chat event.
func (m *Metrics) RecordSessionEvent(ctx context.Context, kind, outcome string) {
	m.SessionEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

// RecordProviderRequest records a provider request counter increment.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}

// StartStage opens a span named "stage.<name>" and returns a function that
// ends it and records the stage duration. outcome overrides the default
// derived from err when non-empty (used for "skipped"). m may be nil.
func StartStage(ctx context.Context, m *Metrics, stage string) (context.Context, func(err error, outcome string)) {
	start := time.Now()
	ctx, span := StartSpan(ctx, "stage."+stage, trace.WithAttributes(attribute.String("stage", stage)))
	return ctx, func(err error, outcome string) {
		if outcome == "" {
			outcome = Outcome(err)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("outcome", outcome))
		span.End()
		if m != nil {
			m.RecordStage(ctx, stage, time.Since(start), outcome)
		}
	}
}
