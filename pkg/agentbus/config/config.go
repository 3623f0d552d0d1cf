package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// IssueStoreMemory selects the in-memory issue store.
const IssueStoreMemory = "memory"

// Config is the full agentbus configuration.
type Config struct {
	Bus           BusConfig           `yaml:"bus" json:"bus"`
	Correlation   CorrelationConfig   `yaml:"correlation" json:"correlation"`
	Agents        AgentsConfig        `yaml:"agents" json:"agents"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// BusConfig configures the event bus.
type BusConfig struct {
	// DeadLetterCapacity bounds the failed-delivery log. 0 disables it.
	DeadLetterCapacity int `yaml:"dead_letter_capacity" json:"dead_letter_capacity"`
}

// CorrelationConfig configures the validator.
type CorrelationConfig struct {
	// Format is the correlation id pattern, anchored at the start of the id.
	Format string `yaml:"format" json:"format"`

	// IssueCapacity bounds the in-memory issue log.
	IssueCapacity int `yaml:"issue_capacity" json:"issue_capacity"`

	// StrictOrder rejects events after the expected order.
	StrictOrder bool `yaml:"strict_order" json:"strict_order"`

	// IssueStore is "" (none), "memory", or a SQLite database path.
	IssueStore string `yaml:"issue_store" json:"issue_store"`

	Tracker TrackerConfig `yaml:"tracker" json:"tracker"`
}

// TrackerConfig configures workflow tracking.
type TrackerConfig struct {
	Enabled      bool `yaml:"enabled" json:"enabled"`
	MaxWorkflows int  `yaml:"max_workflows" json:"max_workflows"`
	MaxEvents    int  `yaml:"max_events" json:"max_events"`
}

// AgentsConfig configures the agent registry.
type AgentsConfig struct {
	// Source is the SourceID of lifecycle events.
	Source string `yaml:"source" json:"source"`

	// SyncEmit dispatches lifecycle events inline.
	SyncEmit bool `yaml:"sync_emit" json:"sync_emit"`
}

// ObservabilityConfig configures logging, metrics and tracing.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`
	Metrics   bool   `yaml:"metrics" json:"metrics"`
	Tracing   bool   `yaml:"tracing" json:"tracing"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Bus: BusConfig{
			DeadLetterCapacity: 1000,
		},
		Correlation: CorrelationConfig{
			IssueCapacity: 1024,
			Tracker: TrackerConfig{
				MaxWorkflows: 256,
				MaxEvents:    1000,
			},
		},
		Agents: AgentsConfig{
			Source: "agent_registry",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
	}
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	var errs []error

	if c.Bus.DeadLetterCapacity < 0 {
		errs = append(errs, fmt.Errorf("bus.dead_letter_capacity must be >= 0, got %d", c.Bus.DeadLetterCapacity))
	}
	if c.Correlation.IssueCapacity < 0 {
		errs = append(errs, fmt.Errorf("correlation.issue_capacity must be >= 0, got %d", c.Correlation.IssueCapacity))
	}
	if c.Correlation.Format != "" {
		if _, err := regexp.Compile(c.Correlation.Format); err != nil {
			errs = append(errs, fmt.Errorf("correlation.format: %w", err))
		}
	}
	if c.Correlation.Tracker.MaxWorkflows < 0 || c.Correlation.Tracker.MaxEvents < 0 {
		errs = append(errs, errors.New("correlation.tracker limits must be >= 0"))
	}
	if _, err := parseLevel(c.Observability.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Observability.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("observability.log_format must be text or json, got %q", c.Observability.LogFormat))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// NewLogger builds a logger writing to w (os.Stderr when nil) using the
// configured level and format.
func (c ObservabilityConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("observability.log_level: %w", err)
	}
	return level, nil
}
