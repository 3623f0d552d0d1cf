package event

import (
	"context"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/agentbus/pkg/agentbus/observability"
)

// BusConfig configures bus behavior. The zero value is usable.
type BusConfig struct {
	// Logger receives warnings and handler failures.
	// Default: slog.Default()
	Logger *slog.Logger

	// Metrics records dispatch and failure counts.
	// Default: observability.NoopMetrics{}
	Metrics observability.MetricsRecorder

	// Spans traces each Dispatch call.
	// Default: observability.NoopSpanManager{}
	Spans observability.SpanManager

	// DeadLetters stores failed deliveries (optional).
	DeadLetters *DeadLetterLog

	// OnError is called after a handler fails, on the dispatching goroutine.
	OnError func(evt Event, handler string, err error)
}

// Bus routes events to handlers subscribed by exact topic, "<prefix>.*"
// or "*". It is safe for concurrent use.
//
// Dispatch snapshots the matching handlers under a read lock and runs them
// after releasing it, so handlers may Subscribe, Unsubscribe or Dispatch
// re-entrantly.
type Bus struct {
	config BusConfig

	mu            sync.RWMutex
	subscriptions map[string][]Handler // pattern -> handlers in subscription order
}

// NewBus creates an in-memory event bus.
func NewBus(config BusConfig) *Bus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Metrics == nil {
		config.Metrics = observability.NoopMetrics{}
	}
	if config.Spans == nil {
		config.Spans = observability.NoopSpanManager{}
	}
	return &Bus{
		config:        config,
		subscriptions: make(map[string][]Handler),
	}
}

var (
	defaultBus     *Bus
	defaultBusOnce sync.Once
)

// Default returns a process-wide bus created on first use with a zero
// BusConfig. Prefer passing a *Bus explicitly; Default exists for producers
// that have no way to receive one.
func Default() *Bus {
	defaultBusOnce.Do(func() {
		defaultBus = NewBus(BusConfig{})
	})
	return defaultBus
}

// Subscribe registers handler under pattern. Subscribing the same
// (pattern, handler) pair twice logs a warning and changes nothing.
func (b *Bus) Subscribe(pattern string, handler Handler) error {
	if err := checkSubscription(pattern, handler); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, h := range b.subscriptions[pattern] {
		if h == handler {
			observability.LogDuplicateSubscription(b.config.Logger, pattern, handlerName(handler))
			return nil
		}
	}
	b.subscriptions[pattern] = append(b.subscriptions[pattern], handler)
	return nil
}

// Unsubscribe removes a (pattern, handler) pair. Removing a pair that was
// never subscribed logs a warning and changes nothing. Patterns left
// without handlers are pruned.
func (b *Bus) Unsubscribe(pattern string, handler Handler) error {
	if err := checkSubscription(pattern, handler); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.subscriptions[pattern]
	for i, h := range handlers {
		if h != handler {
			continue
		}
		if len(handlers) == 1 {
			delete(b.subscriptions, pattern)
		} else {
			remaining := make([]Handler, 0, len(handlers)-1)
			remaining = append(remaining, handlers[:i]...)
			b.subscriptions[pattern] = append(remaining, handlers[i+1:]...)
		}
		return nil
	}

	observability.LogUnknownSubscription(b.config.Logger, pattern, handlerName(handler))
	return nil
}

// Dispatch invokes every handler whose pattern matches evt.Topic exactly
// once. It returns an error only for a malformed event; having no
// subscribers is not an error, and handler failures are logged, never
// returned.
func (b *Bus) Dispatch(ctx context.Context, evt Event) error {
	if err := evt.Validate(); err != nil {
		return err
	}

	ctx, span := b.config.Spans.StartDispatchSpan(ctx, evt.ID, evt.Topic, evt.CorrelationID)
	done := observability.TimedOperation()

	targets := b.match(evt.Topic)
	failures := 0
	for _, t := range targets {
		if err := b.invoke(ctx, evt, t); err != nil {
			failures++
			b.reportFailure(ctx, evt, t, err)
		}
	}

	durationMs := done()
	b.config.Metrics.RecordDispatch(ctx, evt.Topic, len(targets), time.Duration(durationMs*float64(time.Millisecond)))
	observability.LogDispatch(b.config.Logger, evt.ID, evt.Topic, len(targets), durationMs)
	b.config.Spans.AddSpanEvent(ctx, "dispatched",
		attribute.Int("handlers", len(targets)),
		attribute.Int("failures", failures),
	)
	b.config.Spans.EndSpanWithError(span, nil)
	return nil
}

// Patterns returns the patterns that currently have handlers, sorted.
func (b *Bus) Patterns() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	patterns := make([]string, 0, len(b.subscriptions))
	for p := range b.subscriptions {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	return patterns
}

// HandlerCount returns the number of handlers subscribed under pattern.
func (b *Bus) HandlerCount(pattern string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions[pattern])
}

// target is a handler resolved for one dispatch, with the pattern that
// selected it.
type target struct {
	handler Handler
	pattern string
}

// match snapshots the handlers for topic, deduplicated across patterns.
func (b *Bus) match(topic string) []target {
	patterns := MatchingPatterns(topic)

	b.mu.RLock()
	defer b.mu.RUnlock()

	var targets []target
	seen := make(map[Handler]struct{})
	for _, p := range patterns {
		for _, h := range b.subscriptions[p] {
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
			targets = append(targets, target{handler: h, pattern: p})
		}
	}
	return targets
}

// invoke runs one handler, converting a panic into *PanicError.
func (b *Bus) invoke(ctx context.Context, evt Event, t target) (err error) {
	name := handlerName(t.handler)
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Handler: name,
				Pattern: t.pattern,
				Value:   r,
				Stack:   string(debug.Stack()),
			}
		}
	}()

	if herr := t.handler.Handle(ctx, evt); herr != nil {
		return &HandlerError{Handler: name, Pattern: t.pattern, Err: herr}
	}
	return nil
}

func (b *Bus) reportFailure(ctx context.Context, evt Event, t target, err error) {
	name := handlerName(t.handler)
	_, panicked := err.(*PanicError)

	logger := observability.EnrichLogger(b.config.Logger, evt.ID, evt.Topic, evt.SourceID)
	observability.LogHandlerFailure(logger, name, t.pattern, err, panicked)
	b.config.Metrics.RecordHandlerFailure(ctx, evt.Topic, name, panicked)
	b.config.Spans.AddSpanEvent(ctx, "handler_failed",
		attribute.String("handler", name),
		attribute.Bool("panicked", panicked),
	)

	if b.config.DeadLetters != nil {
		b.config.DeadLetters.Record(NewFailedDelivery(evt, name, t.pattern, err))
	}
	if b.config.OnError != nil {
		b.config.OnError(evt, name, err)
	}
}

func checkSubscription(pattern string, handler Handler) error {
	if pattern == "" {
		return ErrInvalidPattern
	}
	if handler == nil {
		return ErrNilHandler
	}
	// Checks the value, not the type: a comparable struct can still hold an
	// unhashable value in an interface field.
	if !reflect.ValueOf(handler).Comparable() {
		return ErrHandlerNotComparable
	}
	return nil
}
