package issuestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/agentbus/pkg/agentbus/correlation"
)

// SQLiteStore persists issues to SQLite.
// It is suitable for single-process use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens or creates an issue store.
// The path should be a file path (e.g., "./issues.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS issues (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			correlation_id TEXT NOT NULL DEFAULT '',
			expected_id TEXT NOT NULL DEFAULT '',
			event_id TEXT NOT NULL DEFAULT '',
			details BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_issues_correlation_id
		ON issues(correlation_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(issue correlation.Issue) error {
	details, err := json.Marshal(issue.Details)
	if err != nil {
		return fmt.Errorf("encode issue details: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err = s.db.Exec(`
		INSERT INTO issues (type, severity, message, timestamp, correlation_id, expected_id, event_id, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(issue.Type),
		string(issue.Severity),
		issue.Message,
		issue.Timestamp.UTC().Format(time.RFC3339Nano),
		issue.Details.CorrelationID,
		issue.Details.ExpectedID,
		issue.Details.EventID,
		details,
	)
	if err != nil {
		return fmt.Errorf("append issue: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(filter Filter) ([]correlation.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var (
		where []string
		args  []any
	)
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.CorrelationID != "" {
		where = append(where, "(correlation_id = ? OR expected_id = ?)")
		args = append(args, filter.CorrelationID, filter.CorrelationID)
	}

	query := "SELECT type, severity, message, timestamp, details FROM issues"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	issues := make([]correlation.Issue, 0)
	for rows.Next() {
		var (
			issue     correlation.Issue
			typ, sev  string
			timestamp string
			details   []byte
		)
		if err := rows.Scan(&typ, &sev, &issue.Message, &timestamp, &details); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issue.Type = correlation.IssueType(typ)
		issue.Severity = correlation.Severity(sev)
		ts, err := time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse issue timestamp: %w", err)
		}
		issue.Timestamp = ts
		if err := json.Unmarshal(details, &issue.Details); err != nil {
			return nil, fmt.Errorf("decode issue details: %w", err)
		}
		issues = append(issues, issue)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}
	return issues, nil
}

// Count implements Store.
func (s *SQLiteStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM issues").Scan(&n); err != nil {
		return 0, fmt.Errorf("count issues: %w", err)
	}
	return n, nil
}

// Clear implements Store.
func (s *SQLiteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec("DELETE FROM issues"); err != nil {
		return fmt.Errorf("clear issues: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
