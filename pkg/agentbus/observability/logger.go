// Package observability provides logging, metrics, and tracing helpers
// for agentbus.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
// Every Log* helper accepts a nil logger and does nothing in that case.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// EnrichLogger adds event context to a logger.
// Returns a new logger with event_id, topic, and source_id fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, evt.ID, evt.Topic, evt.SourceID)
//	enriched.Info("handling") // includes event_id, topic, source_id
func EnrichLogger(logger *slog.Logger, eventID, topic, sourceID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("event_id", eventID),
		slog.String("topic", topic),
		slog.String("source_id", sourceID),
	)
}

// LogDispatch logs a completed dispatch.
func LogDispatch(logger *slog.Logger, eventID, topic string, handlers int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("event dispatched",
		slog.String("event_id", eventID),
		slog.String("topic", topic),
		slog.Int("handlers", handlers),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogHandlerFailure logs a handler that returned an error or panicked.
// Pass a logger from EnrichLogger so the record carries the event context.
func LogHandlerFailure(logger *slog.Logger, handler, pattern string, err error, panicked bool) {
	if logger == nil {
		return
	}
	logger.Error("event handler failed",
		slog.String("handler", handler),
		slog.String("pattern", pattern),
		slog.String("error", err.Error()),
		slog.Bool("panicked", panicked),
	)
}

// LogDuplicateSubscription logs a repeated (pattern, handler) registration.
func LogDuplicateSubscription(logger *slog.Logger, pattern, handler string) {
	if logger == nil {
		return
	}
	logger.Warn("handler already subscribed",
		slog.String("pattern", pattern),
		slog.String("handler", handler),
	)
}

// LogUnknownSubscription logs an unsubscribe for a pair that was never registered.
func LogUnknownSubscription(logger *slog.Logger, pattern, handler string) {
	if logger == nil {
		return
	}
	logger.Warn("handler not subscribed",
		slog.String("pattern", pattern),
		slog.String("handler", handler),
	)
}

// LogUnknownAgent logs an operation on an agent id that is not registered.
func LogUnknownAgent(logger *slog.Logger, op, agentID string) {
	if logger == nil {
		return
	}
	logger.Warn("agent not registered",
		slog.String("operation", op),
		slog.String("agent_id", agentID),
	)
}

// LogEmitError logs a lifecycle event that could not be dispatched.
func LogEmitError(logger *slog.Logger, topic, agentID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("agent event dispatch failed",
		slog.String("topic", topic),
		slog.String("agent_id", agentID),
		slog.String("error", err.Error()),
	)
}

// LogIssue logs a correlation issue at the given level.
func LogIssue(logger *slog.Logger, level slog.Level, issueType, message string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	all := make([]slog.Attr, 0, len(attrs)+1)
	all = append(all, slog.String("issue_type", issueType))
	all = append(all, attrs...)
	logger.LogAttrs(context.Background(), level, message, all...)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
