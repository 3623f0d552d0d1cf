package issuestore

import (
	"slices"
	"sync"

	"github.com/randalmurphal/agentbus/pkg/agentbus/correlation"
)

// MemoryStore keeps issues in memory. Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	issues []correlation.Issue
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (m *MemoryStore) Append(issue correlation.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	issue.Details.ExpectedTypes = slices.Clone(issue.Details.ExpectedTypes)
	issue.Details.FoundTypes = slices.Clone(issue.Details.FoundTypes)
	m.issues = append(m.issues, issue)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(filter Filter) ([]correlation.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]correlation.Issue, 0)
	for _, issue := range m.issues {
		if !filter.matches(issue) {
			continue
		}
		out = append(out, issue)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Count implements Store.
func (m *MemoryStore) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	return len(m.issues), nil
}

// Clear implements Store.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.issues = nil
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.issues = nil
	return nil
}
