package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for the event bus.
var (
	// ErrInvalidEvent is returned when an event is missing its topic or source.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidPattern is returned when a subscription pattern is empty.
	ErrInvalidPattern = errors.New("invalid subscription pattern")

	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrHandlerNotComparable is returned when a handler has no identity,
	// e.g. a bare func value or a struct holding a map.
	ErrHandlerNotComparable = errors.New("handler must be comparable; wrap functions with event.Func")
)

// EventError represents an error tied to a specific event.
type EventError struct {
	Event   Event  // The event that failed
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements error interface.
func (e *EventError) Error() string {
	id := e.Event.ID
	if id == "" {
		id = "<no id>"
	}
	if e.Err != nil {
		return fmt.Sprintf("event %s: %s: %v", id, e.Message, e.Err)
	}
	return fmt.Sprintf("event %s: %s", id, e.Message)
}

// Unwrap returns the underlying error.
func (e *EventError) Unwrap() error {
	return e.Err
}

// HandlerError wraps an error returned by a handler.
type HandlerError struct {
	Handler string
	Pattern string
	Err     error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s (pattern %q): %v", e.Handler, e.Pattern, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a recovered handler panic.
type PanicError struct {
	Handler string
	Pattern string
	Value   any
	Stack   string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler %s (pattern %q) panicked: %v", e.Handler, e.Pattern, e.Value)
}
