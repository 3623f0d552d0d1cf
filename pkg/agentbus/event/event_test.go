package event_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/agentbus/pkg/agentbus/event"
)

func TestNew(t *testing.T) {
	before := time.Now()
	evt := event.New("system.memory.update", "memory", event.Fields{"key": "v"})

	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, "system.memory.update", evt.Topic)
	assert.Equal(t, "memory", evt.SourceID)
	assert.False(t, evt.HasCorrelationID(), "correlation id is absent unless set")
	assert.False(t, evt.Timestamp.Before(before))
	assert.Equal(t, map[string]any{"key": "v"}, evt.Data())
}

func TestNewUniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := event.New("t", "s", nil).ID
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNewOptions(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	evt := event.New("t", "s", nil,
		event.WithID("evt-1"),
		event.WithCorrelationID("wf-1"),
		event.WithCausationID("cause-1"),
		event.WithTimestamp(ts),
	)

	assert.Equal(t, "evt-1", evt.ID)
	assert.Equal(t, "wf-1", evt.CorrelationID)
	assert.Equal(t, "cause-1", evt.CausationID)
	assert.Equal(t, ts, evt.Timestamp)
}

func TestNewFromParent(t *testing.T) {
	parent := event.New("workflow.started", "flow", nil, event.WithCorrelationID("wf-9"))

	child := event.NewFromParent(parent, "step.completed", "worker", nil)
	assert.Equal(t, "wf-9", child.CorrelationID)
	assert.Equal(t, parent.ID, child.CausationID)
	assert.NotEqual(t, parent.ID, child.ID)

	overridden := event.NewFromParent(parent, "step.completed", "worker", nil, event.WithCorrelationID("other"))
	assert.Equal(t, "other", overridden.CorrelationID)
}

func TestNilPayloadIsEmptyFields(t *testing.T) {
	evt := event.New("t", "s", nil)
	require.NotNil(t, evt.Payload)
	assert.Equal(t, "fields", evt.Payload.Kind())
	assert.Empty(t, evt.Data())

	var zero event.Event
	assert.NotNil(t, zero.Data())
}

func TestFieldsDataIsCopy(t *testing.T) {
	f := event.Fields{"a": 1}
	evt := event.New("t", "s", f)

	data := evt.Data()
	data["a"] = 2
	data["b"] = 3

	assert.Equal(t, 1, f["a"])
	assert.NotContains(t, f, "b")
}

func TestPayloadVariants(t *testing.T) {
	tests := []struct {
		name    string
		payload event.Payload
		kind    string
		want    map[string]any
	}{
		{
			name:    "registered",
			payload: event.AgentRegistered{AgentID: "a1", Capabilities: []string{"read"}},
			kind:    event.TopicAgentRegistered,
			want:    map[string]any{"agent_id": "a1", "capabilities": []string{"read"}},
		},
		{
			name:    "unregistered",
			payload: event.AgentUnregistered{AgentID: "a1"},
			kind:    event.TopicAgentUnregistered,
			want:    map[string]any{"agent_id": "a1"},
		},
		{
			name:    "status without task",
			payload: event.AgentStatusChanged{AgentID: "a1", Status: "IDLE"},
			kind:    event.TopicAgentStatusChanged,
			want:    map[string]any{"agent_id": "a1", "status": "IDLE"},
		},
		{
			name:    "status with task and error",
			payload: event.AgentStatusChanged{AgentID: "a1", Status: "FAILED", TaskID: "t1", ErrorMessage: "oops"},
			kind:    event.TopicAgentStatusChanged,
			want: map[string]any{
				"agent_id": "a1", "status": "FAILED", "task_id": "t1", "error_message": "oops",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.payload.Kind())
			assert.Equal(t, tt.want, tt.payload.Fields())
		})
	}
}

func TestEventString(t *testing.T) {
	evt := event.New("t", "s", nil, event.WithID("1"))
	assert.Equal(t, "1[t from s]", evt.String())

	evt = event.New("t", "s", nil, event.WithID("1"), event.WithCorrelationID("c"))
	assert.Equal(t, "1[t from s, corr c]", evt.String())
}

func TestMatchingPatterns(t *testing.T) {
	tests := []struct {
		topic string
		want  []string
	}{
		{"a.b.c", []string{"a.b.c", "a.b.*", "a.*", "*"}},
		{"a", []string{"a", "*"}},
		{"*", []string{"*"}},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, event.MatchingPatterns(tt.topic))
		})
	}
}

func TestMatches(t *testing.T) {
	assert.True(t, event.Matches("system.*", "system.memory.update"))
	assert.True(t, event.Matches("*", "anything"))
	assert.False(t, event.Matches("system.memory.update.*", "system.memory.update"))
	assert.False(t, event.Matches("system.other.*", "system.memory.update"))
}
