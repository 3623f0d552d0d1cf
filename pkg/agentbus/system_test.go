package agentbus_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/agentbus/pkg/agentbus"
	"github.com/randalmurphal/agentbus/pkg/agentbus/agent"
	"github.com/randalmurphal/agentbus/pkg/agentbus/config"
	"github.com/randalmurphal/agentbus/pkg/agentbus/correlation"
	"github.com/randalmurphal/agentbus/pkg/agentbus/event"
	"github.com/randalmurphal/agentbus/pkg/agentbus/issuestore"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDefault(t *testing.T) {
	sys, err := agentbus.New(config.Default(), agentbus.WithLogger(quietLogger()))
	require.NoError(t, err)
	defer sys.Close()

	assert.NotNil(t, sys.Bus)
	assert.NotNil(t, sys.Validator)
	assert.NotNil(t, sys.Agents)
	assert.NotNil(t, sys.DeadLetters)
	assert.Nil(t, sys.Tracker)
	assert.Nil(t, sys.Issues)
	assert.Empty(t, sys.Bus.Patterns())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Correlation.Format = "("

	_, err := agentbus.New(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestSystemEndToEnd(t *testing.T) {
	cfg := config.Default()
	cfg.Correlation.Format = `wf-\d+`
	cfg.Correlation.IssueStore = filepath.Join(t.TempDir(), "issues.db")
	cfg.Correlation.Tracker.Enabled = true
	cfg.Agents.SyncEmit = true

	var failures []string
	sys, err := agentbus.New(cfg,
		agentbus.WithLogger(quietLogger()),
		agentbus.WithErrorHandler(func(_ event.Event, handler string, _ error) {
			failures = append(failures, handler)
		}),
	)
	require.NoError(t, err)
	defer sys.Close()

	require.NotNil(t, sys.Tracker)
	assert.Equal(t, 1, sys.Bus.HandlerCount(event.Wildcard))

	var lifecycle []string
	require.NoError(t, sys.Bus.Subscribe("agent.*", event.Func("lifecycle", func(_ context.Context, evt event.Event) error {
		lifecycle = append(lifecycle, evt.Topic)
		return nil
	})))
	require.NoError(t, sys.Bus.Subscribe("task.completed", event.Func("flaky", func(context.Context, event.Event) error {
		return errors.New("flaky")
	})))

	require.NoError(t, sys.Agents.Register("worker", "build"))
	sys.Agents.UpdateStatus("worker", agent.StatusShutdownReady)
	assert.Equal(t, []string{event.TopicAgentRegistered, event.TopicAgentStatusChanged}, lifecycle)
	assert.True(t, sys.Agents.AllShutdownReady())

	ctx := context.Background()
	start := event.New("task.created", "planner", event.Fields{"id": 1}, event.WithCorrelationID("wf-1"))
	require.NoError(t, sys.Bus.Dispatch(ctx, start))
	require.NoError(t, sys.Bus.Dispatch(ctx, event.NewFromParent(start, "task.completed", "worker", nil)))

	assert.Equal(t, []string{"flaky"}, failures)
	assert.Equal(t, 1, sys.DeadLetters.Count())

	spec := correlation.SequenceSpec{
		OriginTypes:   []string{"task.created"},
		TerminalTypes: []string{"task.completed"},
		Order:         []string{"task.created", "task.completed"},
	}
	assert.True(t, sys.Tracker.Validate("wf-1", spec))
	assert.Empty(t, sys.Validator.Issues())

	require.NoError(t, sys.Bus.Dispatch(ctx,
		event.New("task.created", "planner", nil, event.WithCorrelationID("bad-2"))))
	assert.False(t, sys.Tracker.Validate("bad-2", spec))

	stored, err := sys.Issues.List(issuestore.Filter{CorrelationID: "bad-2"})
	require.NoError(t, err)
	assert.NotEmpty(t, stored)
	assert.Equal(t, len(sys.Validator.Issues()), func() int {
		n, err := sys.Issues.Count()
		require.NoError(t, err)
		return n
	}())
}

func TestSystemStrictOrderAndMemoryStore(t *testing.T) {
	cfg := config.Default()
	cfg.Correlation.StrictOrder = true
	cfg.Correlation.IssueStore = config.IssueStoreMemory
	cfg.Bus.DeadLetterCapacity = 0

	sys, err := agentbus.New(cfg, agentbus.WithLogger(quietLogger()))
	require.NoError(t, err)

	assert.Nil(t, sys.DeadLetters)
	assert.Equal(t, correlation.OrderStrict, sys.Validator.OrderPolicy())

	events := []event.Event{
		event.New("a", "s", nil, event.WithCorrelationID("x")),
		event.New("b", "s", nil, event.WithCorrelationID("x")),
	}
	assert.False(t, sys.Validator.ValidateEventSequence(events, correlation.SequenceSpec{Order: []string{"a"}}))

	n, err := sys.Issues.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, sys.Close())
	_, err = sys.Issues.Count()
	assert.ErrorIs(t, err, issuestore.ErrStoreClosed)
}
