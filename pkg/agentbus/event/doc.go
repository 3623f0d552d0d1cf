// Package event provides the in-process publish/subscribe router used by
// agents and system components.
//
// # Events
//
// An Event is an immutable value with a dot-separated topic, the id of the
// component that produced it, a typed payload and an optional correlation
// id that threads related events into one workflow:
//
//	evt := event.New("task.started", "scheduler", event.Fields{"task": "t-1"},
//	    event.WithCorrelationID(workflowID))
//
//	// Child events inherit correlation and record causation
//	next := event.NewFromParent(evt, "task.completed", "worker-3", nil)
//
// Known topic families have struct payloads (AgentRegistered,
// AgentUnregistered, AgentStatusChanged); everything else uses Fields.
//
// # Subscriptions
//
// A pattern is an exact topic, "<prefix>.*" or "*". For the topic
// "system.memory.update" the matching patterns are:
//
//	system.memory.update
//	system.memory.*
//	system.*
//	*
//
// "system.memory.update.extra" and "system.other.*" do not match. Each
// handler runs at most once per dispatch even when several of its patterns
// match.
//
// Handlers need identity, so functions are wrapped with Func:
//
//	audit := event.Func("audit", func(ctx context.Context, evt event.Event) error {
//	    log.Println(evt)
//	    return nil
//	})
//	bus.Subscribe("*", audit)
//	defer bus.Unsubscribe("*", audit)
//
// # Failure isolation
//
// Dispatch runs handlers synchronously on the caller's goroutine. A
// returned error or a panic is logged, counted, optionally stored in a
// DeadLetterLog and passed to BusConfig.OnError; the remaining handlers
// still run and Dispatch still returns nil. Dispatch only fails for an
// event without a topic or source.
//
// # Interop
//
// ToCloudEvent and FromCloudEvent convert to and from CloudEvents v1.0
// envelopes for collaborators outside the process.
package event
