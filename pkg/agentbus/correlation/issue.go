package correlation

import (
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// IssueType classifies a correlation problem.
type IssueType string

// Issue taxonomy.
const (
	IssueMissingID                IssueType = "MISSING_ID"
	IssueInvalidFormat            IssueType = "INVALID_FORMAT"
	IssueContextMismatch          IssueType = "CONTEXT_MISMATCH"
	IssueInvalidSequenceStart     IssueType = "INVALID_SEQUENCE_START"
	IssueMissingOriginEvent       IssueType = "MISSING_ORIGIN_EVENT"
	IssueMissingAllOriginEvents   IssueType = "MISSING_ALL_ORIGIN_EVENTS"
	IssueMissingTerminalEvent     IssueType = "MISSING_TERMINAL_EVENT"
	IssueMissingAllTerminalEvents IssueType = "MISSING_ALL_TERMINAL_EVENTS"
	IssueIncompleteEventOrder     IssueType = "INCOMPLETE_EVENT_ORDER"
	IssueInvalidEventOrder        IssueType = "INVALID_EVENT_ORDER"

	// IssueUnexpectedTrailingEvents is only recorded under OrderStrict.
	IssueUnexpectedTrailingEvents IssueType = "UNEXPECTED_TRAILING_EVENTS"
)

// Severity controls the log level of an issue. It has no effect on the
// outcome of a validation.
type Severity string

// Severity levels.
const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Level maps a severity to a slog level.
func (s Severity) Level() slog.Level {
	switch s {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Details carries the structured context of an issue. Only the fields that
// apply to the issue type are set.
type Details struct {
	EventID       string   `json:"event_id,omitempty"`
	Topic         string   `json:"topic,omitempty"`
	SourceID      string   `json:"source_id,omitempty"`
	CorrelationID string   `json:"correlation_id,omitempty"`
	ExpectedID    string   `json:"expected_id,omitempty"`
	FoundID       string   `json:"found_id,omitempty"`
	Format        string   `json:"format,omitempty"`
	Index         *int     `json:"index,omitempty"`
	ExpectedType  string   `json:"expected_type,omitempty"`
	ActualType    string   `json:"actual_type,omitempty"`
	ExpectedTypes []string `json:"expected_types,omitempty"`
	FoundTypes    []string `json:"found_types,omitempty"`
	Length        int      `json:"sequence_length,omitempty"`
	ExpectedLen   int      `json:"expected_length,omitempty"`
}

// Issue is one recorded correlation problem.
type Issue struct {
	Type      IssueType `json:"type"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Details   Details   `json:"details"`
}

// String returns a compact form for logs and test failures.
func (i Issue) String() string {
	return fmt.Sprintf("%s(%s): %s", i.Type, i.Severity, i.Message)
}

// clone returns a copy that shares no slices or pointers with i.
func (i Issue) clone() Issue {
	i.Details.ExpectedTypes = slices.Clone(i.Details.ExpectedTypes)
	i.Details.FoundTypes = slices.Clone(i.Details.FoundTypes)
	if i.Details.Index != nil {
		idx := *i.Details.Index
		i.Details.Index = &idx
	}
	return i
}

// attrs returns the non-empty details as slog attributes.
func (d Details) attrs() []slog.Attr {
	var out []slog.Attr
	add := func(key, value string) {
		if value != "" {
			out = append(out, slog.String(key, value))
		}
	}
	add("event_id", d.EventID)
	add("topic", d.Topic)
	add("source_id", d.SourceID)
	add("correlation_id", d.CorrelationID)
	add("expected_id", d.ExpectedID)
	add("found_id", d.FoundID)
	add("expected_type", d.ExpectedType)
	add("actual_type", d.ActualType)
	if d.Index != nil {
		out = append(out, slog.Int("index", *d.Index))
	}
	return out
}
