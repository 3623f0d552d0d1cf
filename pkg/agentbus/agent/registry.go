// Package agent tracks live agents and publishes their lifecycle as events.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/randalmurphal/agentbus/pkg/agentbus/event"
	"github.com/randalmurphal/agentbus/pkg/agentbus/observability"
)

// Well-known status values. Status is free-form; only StatusShutdownReady
// has behavior attached.
const (
	StatusRegistered    = "REGISTERED"
	StatusShutdownReady = "SHUTDOWN_READY"
)

// DefaultSource is the SourceID of lifecycle events when none is configured.
const DefaultSource = "agent_registry"

// ErrInvalidAgentID is returned when an agent id is empty.
var ErrInvalidAgentID = errors.New("agent id is required")

// Dispatcher delivers events. *event.Bus satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt event.Event) error
}

// Info is a snapshot of an agent record.
type Info struct {
	ID           string    `json:"agent_id"`
	Capabilities []string  `json:"capabilities"`
	Status       string    `json:"status"`
	CurrentTask  string    `json:"current_task,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasCapability reports whether the agent advertised capability.
func (i Info) HasCapability(capability string) bool {
	for _, c := range i.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

type record struct {
	capabilities map[string]struct{}
	status       string
	currentTask  string
	errorMessage string
	registeredAt time.Time
	updatedAt    time.Time
}

func (r *record) snapshot(id string) Info {
	caps := make([]string, 0, len(r.capabilities))
	for c := range r.capabilities {
		caps = append(caps, c)
	}
	sort.Strings(caps)
	return Info{
		ID:           id,
		Capabilities: caps,
		Status:       r.status,
		CurrentTask:  r.currentTask,
		ErrorMessage: r.errorMessage,
		RegisteredAt: r.registeredAt,
		UpdatedAt:    r.updatedAt,
	}
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Bus receives lifecycle events. Nil disables emission.
	Bus Dispatcher

	// Source is the SourceID of emitted events.
	// Default: DefaultSource
	Source string

	// Logger receives warnings for soft failures.
	// Default: slog.Default()
	Logger *slog.Logger

	// SyncEmit dispatches lifecycle events on the calling goroutine after
	// the registry lock is released. By default emission is fire-and-forget
	// on a separate goroutine; use Wait to block until it finishes.
	SyncEmit bool
}

// Registry holds the set of active agents. It is safe for concurrent use.
type Registry struct {
	cfg RegistryConfig

	mu            sync.RWMutex
	agents        map[string]*record
	shutdownReady map[string]struct{}

	emitting sync.WaitGroup
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{
		cfg:           cfg,
		agents:        make(map[string]*record),
		shutdownReady: make(map[string]struct{}),
	}
}

// Register adds an agent with status REGISTERED and emits agent.registered.
// Registering an id that is already present logs a warning and leaves the
// existing record untouched.
func (r *Registry) Register(agentID string, capabilities ...string) error {
	if agentID == "" {
		return ErrInvalidAgentID
	}

	r.mu.Lock()
	if _, exists := r.agents[agentID]; exists {
		r.mu.Unlock()
		r.cfg.Logger.Warn("agent already registered", slog.String("agent_id", agentID))
		return nil
	}
	now := time.Now()
	rec := &record{
		capabilities: make(map[string]struct{}, len(capabilities)),
		status:       StatusRegistered,
		registeredAt: now,
		updatedAt:    now,
	}
	for _, c := range capabilities {
		rec.capabilities[c] = struct{}{}
	}
	r.agents[agentID] = rec
	caps := rec.snapshot(agentID).Capabilities
	r.mu.Unlock()

	r.cfg.Logger.Info("agent registered",
		slog.String("agent_id", agentID),
		slog.Any("capabilities", caps),
	)
	r.emit(event.TopicAgentRegistered, agentID, event.AgentRegistered{
		AgentID:      agentID,
		Capabilities: caps,
	})
	return nil
}

// Unregister removes an agent and emits agent.unregistered. Unknown ids
// log a warning and change nothing.
func (r *Registry) Unregister(agentID string) error {
	r.mu.Lock()
	if _, exists := r.agents[agentID]; !exists {
		r.mu.Unlock()
		observability.LogUnknownAgent(r.cfg.Logger, "unregister", agentID)
		return nil
	}
	delete(r.agents, agentID)
	delete(r.shutdownReady, agentID)
	r.mu.Unlock()

	r.cfg.Logger.Info("agent unregistered", slog.String("agent_id", agentID))
	r.emit(event.TopicAgentUnregistered, agentID, event.AgentUnregistered{AgentID: agentID})
	return nil
}

// StatusOption sets optional fields of a status update.
type StatusOption func(*statusUpdate)

type statusUpdate struct {
	taskID   string
	errorMsg string
}

// WithTask sets the agent's current task.
func WithTask(taskID string) StatusOption {
	return func(u *statusUpdate) {
		u.taskID = taskID
	}
}

// WithError sets the agent's error message.
func WithError(msg string) StatusOption {
	return func(u *statusUpdate) {
		u.errorMsg = msg
	}
}

// UpdateStatus replaces an agent's status, current task and error message
// (task and error are cleared unless given) and emits agent.status_changed.
// SHUTDOWN_READY also marks the agent ready for coordinated shutdown.
// Unknown ids log a warning and change nothing; the return value reports
// whether the agent was found.
func (r *Registry) UpdateStatus(agentID, status string, opts ...StatusOption) bool {
	var u statusUpdate
	for _, opt := range opts {
		opt(&u)
	}

	r.mu.Lock()
	rec, exists := r.agents[agentID]
	if !exists {
		r.mu.Unlock()
		observability.LogUnknownAgent(r.cfg.Logger, "update_status", agentID)
		return false
	}
	rec.status = status
	rec.currentTask = u.taskID
	rec.errorMessage = u.errorMsg
	rec.updatedAt = time.Now()
	if status == StatusShutdownReady {
		r.shutdownReady[agentID] = struct{}{}
	}
	r.mu.Unlock()

	r.cfg.Logger.Debug("agent status changed",
		slog.String("agent_id", agentID),
		slog.String("status", status),
	)
	r.emit(event.TopicAgentStatusChanged, agentID, event.AgentStatusChanged{
		AgentID:      agentID,
		Status:       status,
		TaskID:       u.taskID,
		ErrorMessage: u.errorMsg,
	})
	return true
}

// GetInfo returns a snapshot of an agent record.
func (r *Registry) GetInfo(agentID string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.agents[agentID]
	if !ok {
		return Info{}, false
	}
	return rec.snapshot(agentID), true
}

// List returns snapshots of every agent, sorted by id.
func (r *Registry) List() []Info {
	r.mu.RLock()
	infos := make([]Info, 0, len(r.agents))
	for id, rec := range r.agents {
		infos = append(infos, rec.snapshot(id))
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// WithCapability returns the ids of agents advertising capability, sorted.
func (r *Registry) WithCapability(capability string) []string {
	r.mu.RLock()
	var ids []string
	for id, rec := range r.agents {
		if _, ok := rec.capabilities[capability]; ok {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// ShutdownReady returns the ids of agents that reported SHUTDOWN_READY, sorted.
func (r *Registry) ShutdownReady() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.shutdownReady))
	for id := range r.shutdownReady {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// IsShutdownReady reports whether agentID reported SHUTDOWN_READY.
func (r *Registry) IsShutdownReady(agentID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.shutdownReady[agentID]
	return ok
}

// AllShutdownReady reports whether at least one agent is registered and
// every registered agent reported SHUTDOWN_READY.
func (r *Registry) AllShutdownReady() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.agents) == 0 {
		return false
	}
	for id := range r.agents {
		if _, ok := r.shutdownReady[id]; !ok {
			return false
		}
	}
	return true
}

// Wait blocks until every fire-and-forget emission has finished.
func (r *Registry) Wait() {
	r.emitting.Wait()
}

// emit publishes a lifecycle event. Must be called without r.mu held.
func (r *Registry) emit(topic, agentID string, payload event.Payload) {
	if r.cfg.Bus == nil {
		return
	}
	evt := event.New(topic, r.cfg.Source, payload)

	send := func() {
		if err := r.cfg.Bus.Dispatch(context.Background(), evt); err != nil {
			observability.LogEmitError(r.cfg.Logger, topic, agentID, err)
		}
	}

	if r.cfg.SyncEmit {
		send()
		return
	}
	r.emitting.Add(1)
	go func() {
		defer r.emitting.Done()
		send()
	}()
}
