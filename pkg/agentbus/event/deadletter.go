package event

import (
	"errors"
	"sync"
	"time"
)

// FailedDelivery records one handler invocation that returned an error or
// panicked.
type FailedDelivery struct {
	EventID       string    `json:"event_id"`
	Topic         string    `json:"topic"`
	SourceID      string    `json:"source_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Handler       string    `json:"handler"`
	Pattern       string    `json:"pattern"`
	Error         string    `json:"error"`
	Panicked      bool      `json:"panicked"`
	FailedAt      time.Time `json:"failed_at"`
}

// NewFailedDelivery creates a FailedDelivery from a handler failure.
func NewFailedDelivery(evt Event, handler, pattern string, err error) FailedDelivery {
	var pe *PanicError
	return FailedDelivery{
		EventID:       evt.ID,
		Topic:         evt.Topic,
		SourceID:      evt.SourceID,
		CorrelationID: evt.CorrelationID,
		Handler:       handler,
		Pattern:       pattern,
		Error:         err.Error(),
		Panicked:      errors.As(err, &pe),
		FailedAt:      time.Now(),
	}
}

// DeadLetterConfig configures the dead-letter log.
type DeadLetterConfig struct {
	// Capacity bounds the number of retained failures; the oldest entry is
	// evicted when full.
	// Default: 1000
	Capacity int

	// OnRecord is called after a failure is stored.
	OnRecord func(FailedDelivery)
}

// DefaultDeadLetterConfig provides reasonable defaults.
var DefaultDeadLetterConfig = DeadLetterConfig{
	Capacity: 1000,
}

// DeadLetterLog keeps the most recent handler failures for inspection.
// It never retries anything; delivery stays at-most-once.
type DeadLetterLog struct {
	mu      sync.Mutex
	cfg     DeadLetterConfig
	entries []FailedDelivery // ring buffer
	start   int
	size    int
	dropped int64
}

// NewDeadLetterLog creates a bounded dead-letter log.
func NewDeadLetterLog(cfg DeadLetterConfig) *DeadLetterLog {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultDeadLetterConfig.Capacity
	}
	return &DeadLetterLog{
		cfg:     cfg,
		entries: make([]FailedDelivery, cfg.Capacity),
	}
}

// Record stores a failure, evicting the oldest one when full.
func (d *DeadLetterLog) Record(f FailedDelivery) {
	d.mu.Lock()
	if d.size == len(d.entries) {
		d.entries[d.start] = f
		d.start = (d.start + 1) % len(d.entries)
		d.dropped++
	} else {
		d.entries[(d.start+d.size)%len(d.entries)] = f
		d.size++
	}
	onRecord := d.cfg.OnRecord
	d.mu.Unlock()

	if onRecord != nil {
		onRecord(f)
	}
}

// List returns the retained failures, oldest first.
func (d *DeadLetterLog) List() []FailedDelivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// Drain returns the retained failures and empties the log.
func (d *DeadLetterLog) Drain() []FailedDelivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.snapshotLocked()
	clear(d.entries)
	d.start, d.size = 0, 0
	return out
}

// Count returns the number of retained failures.
func (d *DeadLetterLog) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

// Dropped returns how many failures were evicted to respect Capacity.
func (d *DeadLetterLog) Dropped() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *DeadLetterLog) snapshotLocked() []FailedDelivery {
	out := make([]FailedDelivery, d.size)
	for i := 0; i < d.size; i++ {
		out[i] = d.entries[(d.start+i)%len(d.entries)]
	}
	return out
}
