package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable notification routed by the Bus.
//
// Events are values: handlers receive copies and nothing in this package
// mutates a dispatched event. An empty CorrelationID means the event does
// not belong to a workflow.
type Event struct {
	ID            string    `json:"id"`
	Topic         string    `json:"topic"`
	SourceID      string    `json:"source_id"`
	Payload       Payload   `json:"-"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CausationID   string    `json:"causation_id,omitempty"`
}

// Data returns the payload as an opaque key-value map.
// Never returns nil.
func (e Event) Data() map[string]any {
	if e.Payload == nil {
		return map[string]any{}
	}
	return e.Payload.Fields()
}

// HasCorrelationID reports whether the event carries a correlation id.
func (e Event) HasCorrelationID() bool {
	return e.CorrelationID != ""
}

// Validate checks the fields a Bus needs to route the event.
func (e Event) Validate() error {
	if e.Topic == "" {
		return &EventError{Event: e, Message: "topic is required", Err: ErrInvalidEvent}
	}
	if e.SourceID == "" {
		return &EventError{Event: e, Message: "source id is required", Err: ErrInvalidEvent}
	}
	return nil
}

// String returns a short description for logs.
func (e Event) String() string {
	if e.CorrelationID == "" {
		return fmt.Sprintf("%s[%s from %s]", e.ID, e.Topic, e.SourceID)
	}
	return fmt.Sprintf("%s[%s from %s, corr %s]", e.ID, e.Topic, e.SourceID, e.CorrelationID)
}

// Option configures event creation.
type Option func(*eventConfig)

type eventConfig struct {
	id            string
	correlationID string
	causationID   string
	timestamp     time.Time
}

// WithID sets a specific event ID (default: auto-generated UUID).
func WithID(id string) Option {
	return func(cfg *eventConfig) {
		cfg.id = id
	}
}

// WithCorrelationID sets the workflow correlation ID.
func WithCorrelationID(id string) Option {
	return func(cfg *eventConfig) {
		cfg.correlationID = id
	}
}

// WithCausationID sets the ID of the causing event.
func WithCausationID(id string) Option {
	return func(cfg *eventConfig) {
		cfg.causationID = id
	}
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(cfg *eventConfig) {
		cfg.timestamp = t
	}
}

// New creates an event with a fresh ID and the current time.
// A nil payload is stored as empty Fields.
func New(topic, source string, payload Payload, opts ...Option) Event {
	cfg := &eventConfig{
		id:        uuid.NewString(),
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if payload == nil {
		payload = Fields{}
	}
	return Event{
		ID:            cfg.id,
		Topic:         topic,
		SourceID:      source,
		Payload:       payload,
		Timestamp:     cfg.timestamp,
		CorrelationID: cfg.correlationID,
		CausationID:   cfg.causationID,
	}
}

// NewFromParent creates an event caused by parent.
// It inherits the parent's correlation ID and records the parent as cause;
// opts may override either.
func NewFromParent(parent Event, topic, source string, payload Payload, opts ...Option) Event {
	parentOpts := []Option{
		WithCorrelationID(parent.CorrelationID),
		WithCausationID(parent.ID),
	}
	return New(topic, source, payload, append(parentOpts, opts...)...)
}

// Handler processes dispatched events.
//
// Handlers run on the goroutine that called Dispatch. A returned error or a
// panic is logged by the bus and never reaches the dispatcher.
type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

// Named is implemented by handlers that want a readable name in logs.
type Named interface {
	Name() string
}

// FuncHandler adapts a function to the Handler interface.
// Always use it through a pointer (see Func) so it has identity.
type FuncHandler struct {
	name string
	fn   func(ctx context.Context, evt Event) error
}

// Func wraps fn as a Handler. The returned pointer is the handler's identity
// for Subscribe and Unsubscribe.
func Func(name string, fn func(ctx context.Context, evt Event) error) *FuncHandler {
	return &FuncHandler{name: name, fn: fn}
}

// Handle implements Handler.
func (h *FuncHandler) Handle(ctx context.Context, evt Event) error {
	return h.fn(ctx, evt)
}

// Name implements Named.
func (h *FuncHandler) Name() string {
	if h.name == "" {
		return fmt.Sprintf("func@%p", h)
	}
	return h.name
}

// handlerName extracts a name for a handler (for logging/metrics).
func handlerName(h Handler) string {
	if n, ok := h.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", h)
}
