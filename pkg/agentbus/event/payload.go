package event

import "slices"

// Lifecycle topics emitted by the agent registry.
const (
	TopicAgentRegistered    = "agent.registered"
	TopicAgentUnregistered  = "agent.unregistered"
	TopicAgentStatusChanged = "agent.status_changed"
)

// Payload is the closed set of event bodies.
// Known topic families get a struct; everything else uses Fields.
type Payload interface {
	// Kind names the variant, e.g. "agent.registered" or "fields".
	Kind() string

	// Fields returns the payload as a fresh key-value map.
	Fields() map[string]any

	payload()
}

// Fields is an unstructured payload.
type Fields map[string]any

// Kind implements Payload.
func (Fields) Kind() string { return "fields" }

// Fields returns a shallow copy of the map.
func (f Fields) Fields() map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (Fields) payload() {}

// AgentRegistered is the payload of TopicAgentRegistered.
type AgentRegistered struct {
	AgentID      string   `json:"agent_id"`
	Capabilities []string `json:"capabilities"`
}

// Kind implements Payload.
func (AgentRegistered) Kind() string { return TopicAgentRegistered }

// Fields implements Payload.
func (p AgentRegistered) Fields() map[string]any {
	return map[string]any{
		"agent_id":     p.AgentID,
		"capabilities": slices.Clone(p.Capabilities),
	}
}

func (AgentRegistered) payload() {}

// AgentUnregistered is the payload of TopicAgentUnregistered.
type AgentUnregistered struct {
	AgentID string `json:"agent_id"`
}

// Kind implements Payload.
func (AgentUnregistered) Kind() string { return TopicAgentUnregistered }

// Fields implements Payload.
func (p AgentUnregistered) Fields() map[string]any {
	return map[string]any{"agent_id": p.AgentID}
}

func (AgentUnregistered) payload() {}

// AgentStatusChanged is the payload of TopicAgentStatusChanged.
// TaskID and ErrorMessage are empty when not set.
type AgentStatusChanged struct {
	AgentID      string `json:"agent_id"`
	Status       string `json:"status"`
	TaskID       string `json:"task_id,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Kind implements Payload.
func (AgentStatusChanged) Kind() string { return TopicAgentStatusChanged }

// Fields implements Payload.
func (p AgentStatusChanged) Fields() map[string]any {
	m := map[string]any{
		"agent_id": p.AgentID,
		"status":   p.Status,
	}
	if p.TaskID != "" {
		m["task_id"] = p.TaskID
	}
	if p.ErrorMessage != "" {
		m["error_message"] = p.ErrorMessage
	}
	return m
}

func (AgentStatusChanged) payload() {}
