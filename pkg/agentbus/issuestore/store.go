// Package issuestore keeps an audit trail of correlation issues beyond the
// validator's bounded in-memory log.
//
// Stores satisfy correlation.Sink, so they can be attached with
// correlation.WithSink. Nothing is ever replayed from a store.
package issuestore

import (
	"errors"

	"github.com/randalmurphal/agentbus/pkg/agentbus/correlation"
)

// Store persists correlation issues.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append records an issue.
	Append(issue correlation.Issue) error

	// List returns issues matching the filter, oldest first.
	// Returns an empty slice (not an error) when nothing matches.
	List(filter Filter) ([]correlation.Issue, error)

	// Count returns the number of stored issues.
	Count() (int, error)

	// Clear removes every stored issue.
	Clear() error

	// Close releases any resources (connections, files).
	Close() error
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	// Type keeps only issues of this type.
	Type correlation.IssueType

	// CorrelationID keeps issues whose correlation id or expected id equals it.
	CorrelationID string

	// Limit caps the number of results.
	Limit int
}

func (f Filter) matches(issue correlation.Issue) bool {
	if f.Type != "" && issue.Type != f.Type {
		return false
	}
	if f.CorrelationID != "" &&
		issue.Details.CorrelationID != f.CorrelationID &&
		issue.Details.ExpectedID != f.CorrelationID {
		return false
	}
	return true
}

// ErrStoreClosed indicates the store has been closed.
var ErrStoreClosed = errors.New("issue store closed")

var (
	_ Store            = (*MemoryStore)(nil)
	_ Store            = (*SQLiteStore)(nil)
	_ correlation.Sink = (*MemoryStore)(nil)
	_ correlation.Sink = (*SQLiteStore)(nil)
)
