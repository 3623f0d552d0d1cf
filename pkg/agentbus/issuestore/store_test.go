package issuestore_test

import (
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/agentbus/pkg/agentbus/correlation"
	"github.com/randalmurphal/agentbus/pkg/agentbus/event"
	"github.com/randalmurphal/agentbus/pkg/agentbus/issuestore"
)

type storeFactory func(t *testing.T) issuestore.Store

func issue(typ correlation.IssueType, corr string) correlation.Issue {
	return correlation.Issue{
		Type:      typ,
		Severity:  correlation.SeverityError,
		Message:   string(typ) + " for " + corr,
		Timestamp: time.Date(2024, 3, 4, 5, 6, 7, 8, time.UTC),
		Details:   correlation.Details{CorrelationID: corr, EventID: "evt-" + corr},
	}
}

func storeContractTest(t *testing.T, name string, factory storeFactory) {
	t.Run(name+"/Append_and_List", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		idx := 2
		in := issue(correlation.IssueInvalidEventOrder, "wf-1")
		in.Details.Index = &idx
		in.Details.ExpectedTypes = []string{"a", "b"}
		require.NoError(t, store.Append(in))

		out, err := store.List(issuestore.Filter{})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, in.Type, out[0].Type)
		assert.Equal(t, in.Severity, out[0].Severity)
		assert.Equal(t, in.Message, out[0].Message)
		assert.True(t, in.Timestamp.Equal(out[0].Timestamp))
		require.NotNil(t, out[0].Details.Index)
		assert.Equal(t, 2, *out[0].Details.Index)
		assert.Equal(t, []string{"a", "b"}, out[0].Details.ExpectedTypes)
	})

	t.Run(name+"/List_Empty", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		out, err := store.List(issuestore.Filter{Type: correlation.IssueMissingID})
		require.NoError(t, err)
		assert.NotNil(t, out)
		assert.Empty(t, out)
	})

	t.Run(name+"/List_Filters", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Append(issue(correlation.IssueMissingID, "")))
		require.NoError(t, store.Append(issue(correlation.IssueInvalidFormat, "wf-1")))
		require.NoError(t, store.Append(issue(correlation.IssueMissingID, "wf-2")))

		mismatch := issue(correlation.IssueContextMismatch, "wf-x")
		mismatch.Details.ExpectedID = "wf-1"
		require.NoError(t, store.Append(mismatch))

		byType, err := store.List(issuestore.Filter{Type: correlation.IssueMissingID})
		require.NoError(t, err)
		assert.Len(t, byType, 2)

		byWorkflow, err := store.List(issuestore.Filter{CorrelationID: "wf-1"})
		require.NoError(t, err)
		require.Len(t, byWorkflow, 2)
		assert.Equal(t, correlation.IssueInvalidFormat, byWorkflow[0].Type)
		assert.Equal(t, correlation.IssueContextMismatch, byWorkflow[1].Type)

		both, err := store.List(issuestore.Filter{Type: correlation.IssueMissingID, CorrelationID: "wf-2"})
		require.NoError(t, err)
		assert.Len(t, both, 1)

		limited, err := store.List(issuestore.Filter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, limited, 2)
		assert.Equal(t, correlation.IssueMissingID, limited[0].Type)
	})

	t.Run(name+"/Count_and_Clear", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		for i := 0; i < 3; i++ {
			require.NoError(t, store.Append(issue(correlation.IssueMissingID, "")))
		}
		n, err := store.Count()
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		require.NoError(t, store.Clear())
		n, err = store.Count()
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run(name+"/Closed", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())

		assert.ErrorIs(t, store.Append(issue(correlation.IssueMissingID, "")), issuestore.ErrStoreClosed)
		_, err := store.List(issuestore.Filter{})
		assert.ErrorIs(t, err, issuestore.ErrStoreClosed)
		_, err = store.Count()
		assert.ErrorIs(t, err, issuestore.ErrStoreClosed)
		assert.ErrorIs(t, store.Clear(), issuestore.ErrStoreClosed)
	})

	t.Run(name+"/Concurrent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					assert.NoError(t, store.Append(issue(correlation.IssueMissingID, "")))
					_, err := store.List(issuestore.Filter{Limit: 5})
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		n, err := store.Count()
		require.NoError(t, err)
		assert.Equal(t, 100, n)
	})

	t.Run(name+"/As_Validator_Sink", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		v, err := correlation.New(correlation.WithSink(store))
		require.NoError(t, err)
		v.ValidateEvent(event.New("a", "test", nil), "")

		out, err := store.List(issuestore.Filter{Type: correlation.IssueMissingID})
		require.NoError(t, err)
		assert.Len(t, out, 1)
	})
}

func TestMemoryStore(t *testing.T) {
	storeContractTest(t, "Memory", func(t *testing.T) issuestore.Store {
		return issuestore.NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	storeContractTest(t, "SQLite", func(t *testing.T) issuestore.Store {
		store, err := issuestore.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	})
}

func TestSQLiteStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.db")

	first, err := issuestore.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Append(issue(correlation.IssueMissingTerminalEvent, "wf-1")))
	require.NoError(t, first.Close())

	second, err := issuestore.NewSQLiteStore(path)
	require.NoError(t, err)
	defer second.Close()

	out, err := second.List(issuestore.Filter{CorrelationID: "wf-1"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, correlation.IssueMissingTerminalEvent, out[0].Type)
}

func TestSQLiteStoreCorruptTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.db")

	store, err := issuestore.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO issues (type, severity, message, timestamp, details)
		VALUES ('MISSING_ID', 'ERROR', 'bad row', 'yesterday', '{}')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err = issuestore.NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.List(issuestore.Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse issue timestamp")
}

func TestSQLiteStoreInvalidPath(t *testing.T) {
	_, err := issuestore.NewSQLiteStore("/nonexistent/path/issues.db")
	assert.Error(t, err)
}
