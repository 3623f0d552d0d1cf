package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records agentbus metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDispatch records one Dispatch call with the number of handlers invoked.
	RecordDispatch(ctx context.Context, topic string, handlers int, duration time.Duration)

	// RecordHandlerFailure records a handler that returned an error or panicked.
	RecordHandlerFailure(ctx context.Context, topic, handler string, panicked bool)

	// RecordIssue records a correlation issue.
	RecordIssue(ctx context.Context, issueType, severity string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	events          metric.Int64Counter
	deliveries      metric.Int64Counter
	handlerFailures metric.Int64Counter
	latency         metric.Float64Histogram
	issues          metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("agentbus")

	events, err := meter.Int64Counter("agentbus.dispatch.events",
		metric.WithDescription("Number of events dispatched"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("agentbus.dispatch.deliveries",
		metric.WithDescription("Number of handler invocations"),
	)
	if err != nil {
		return nil, err
	}

	handlerFailures, err := meter.Int64Counter("agentbus.dispatch.handler_failures",
		metric.WithDescription("Number of handler invocations that failed or panicked"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("agentbus.dispatch.latency_ms",
		metric.WithDescription("Dispatch latency in milliseconds, handlers included"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	issues, err := meter.Int64Counter("agentbus.correlation.issues",
		metric.WithDescription("Number of correlation issues recorded"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		events:          events,
		deliveries:      deliveries,
		handlerFailures: handlerFailures,
		latency:         latency,
		issues:          issues,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordDispatch records a dispatch.
func (m *otelMetrics) RecordDispatch(ctx context.Context, topic string, handlers int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("topic", topic))
	m.events.Add(ctx, 1, attrs)
	if handlers > 0 {
		m.deliveries.Add(ctx, int64(handlers), attrs)
	}
	m.latency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordHandlerFailure records a failed handler invocation.
func (m *otelMetrics) RecordHandlerFailure(ctx context.Context, topic, handler string, panicked bool) {
	m.handlerFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("handler", handler),
		attribute.Bool("panicked", panicked),
	))
}

// RecordIssue records a correlation issue.
func (m *otelMetrics) RecordIssue(ctx context.Context, issueType, severity string) {
	m.issues.Add(ctx, 1, metric.WithAttributes(
		attribute.String("issue_type", issueType),
		attribute.String("severity", severity),
	))
}
