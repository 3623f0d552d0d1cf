/*
Package agentbus is an in-process event bus for cooperating agents, with
correlation id validation for the workflows they run.

# Overview

Producers build events and dispatch them; handlers subscribe by exact
topic, by "<prefix>.*", or to everything with "*". Events that belong to
one logical workflow share a correlation id, and the correlation package
checks that they do.

Delivery is in memory, best effort, and at most once per handler. There
is no persistence, no retry and no cross-process transport.

# Basic Usage

Build a System from configuration and use its components:

	sys, err := agentbus.New(config.Default())
	if err != nil {
	    log.Fatal(err)
	}
	defer sys.Close()

	sys.Bus.Subscribe("task.*", event.Func("audit", func(ctx context.Context, evt event.Event) error {
	    log.Println(evt)
	    return nil
	}))

	sys.Agents.Register("planner", "plan")
	sys.Bus.Dispatch(ctx, event.New("task.created", "planner", event.Fields{"id": 1},
	    event.WithCorrelationID("wf-1")))

# Packages

  - event: events, handlers, the Bus, dead letters, CloudEvents conversion
  - agent: the agent Registry and its lifecycle events
  - correlation: the Validator, issues, and the workflow Tracker
  - issuestore: in-memory and SQLite issue audit trails
  - observability: slog helpers, OpenTelemetry metrics and tracing
  - config: YAML/JSON configuration

# Workflow Validation

With correlation.tracker.enabled the System subscribes a Tracker to "*",
so finished workflows can be checked by id:

	ok := sys.Tracker.Validate("wf-1", correlation.SequenceSpec{
	    OriginTypes:   []string{"task.created"},
	    TerminalTypes: []string{"task.completed"},
	    Order:         []string{"task.created", "task.completed"},
	})
	if !ok {
	    for _, issue := range sys.Validator.Issues() {
	        log.Println(issue)
	    }
	}
*/
package agentbus
