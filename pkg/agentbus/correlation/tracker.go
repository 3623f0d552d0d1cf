package correlation

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/randalmurphal/agentbus/pkg/agentbus/event"
)

// TrackerConfig bounds the memory a Tracker may hold.
type TrackerConfig struct {
	// MaxWorkflows is the number of correlation ids kept. When exceeded the
	// workflow seen first is evicted.
	// Default: 256
	MaxWorkflows int

	// MaxEvents is the number of events kept per workflow. Later events are
	// counted and dropped.
	// Default: 1000
	MaxEvents int

	// Logger receives eviction notices.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultTrackerConfig provides reasonable defaults.
var DefaultTrackerConfig = TrackerConfig{
	MaxWorkflows: 256,
	MaxEvents:    1000,
}

// Tracker groups dispatched events by correlation id so whole workflows can
// be validated after the fact. Subscribe it to "*" on a bus.
type Tracker struct {
	validator *Validator
	cfg       TrackerConfig

	mu           sync.Mutex
	workflows    map[string][]event.Event
	arrival      []string
	uncorrelated int64
	overflow     int64
}

// NewTracker creates a Tracker that validates with v.
func NewTracker(v *Validator, cfg TrackerConfig) *Tracker {
	if cfg.MaxWorkflows <= 0 {
		cfg.MaxWorkflows = DefaultTrackerConfig.MaxWorkflows
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultTrackerConfig.MaxEvents
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Tracker{
		validator: v,
		cfg:       cfg,
		workflows: make(map[string][]event.Event),
	}
}

// Name identifies the tracker in bus logs.
func (t *Tracker) Name() string {
	return "correlation.tracker"
}

// Handle buffers evt under its correlation id. Events without one are
// counted and skipped.
func (t *Tracker) Handle(_ context.Context, evt event.Event) error {
	if !evt.HasCorrelationID() {
		t.mu.Lock()
		t.uncorrelated++
		t.mu.Unlock()
		return nil
	}

	id := evt.CorrelationID

	t.mu.Lock()
	defer t.mu.Unlock()

	events, ok := t.workflows[id]
	if !ok {
		if len(t.arrival) >= t.cfg.MaxWorkflows {
			oldest := t.arrival[0]
			t.arrival = t.arrival[1:]
			delete(t.workflows, oldest)
			t.cfg.Logger.Debug("tracker evicted workflow", slog.String("correlation_id", oldest))
		}
		t.arrival = append(t.arrival, id)
	}

	if len(events) >= t.cfg.MaxEvents {
		t.overflow++
		return nil
	}
	t.workflows[id] = append(events, evt)
	return nil
}

// Events returns a copy of the events buffered for id, in arrival order.
func (t *Tracker) Events(id string) []event.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.workflows[id])
}

// Workflows returns the tracked correlation ids, oldest first.
func (t *Tracker) Workflows() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.arrival)
}

// Validate runs ValidateEventSequence over the workflow buffered for id.
// spec.CorrelationID defaults to id. An unknown id validates as an empty
// sequence.
func (t *Tracker) Validate(id string, spec SequenceSpec) bool {
	if spec.CorrelationID == "" {
		spec.CorrelationID = id
	}
	return t.validator.ValidateEventSequence(t.Events(id), spec)
}

// Forget drops the workflow buffered for id.
func (t *Tracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.workflows[id]; !ok {
		return
	}
	delete(t.workflows, id)
	t.arrival = slices.DeleteFunc(t.arrival, func(s string) bool { return s == id })
}

// Uncorrelated returns how many events arrived without a correlation id.
func (t *Tracker) Uncorrelated() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.uncorrelated
}

// Overflow returns how many events were dropped because their workflow
// was full.
func (t *Tracker) Overflow() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.overflow
}
