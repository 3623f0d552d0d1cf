// Package correlation validates correlation id discipline across events
// and workflows.
//
// A correlation id threads related events into one logical workflow. The
// Validator checks single events (id present, well formed, and equal to
// the surrounding workflow id) and whole sequences (origin and terminal
// events present, topics in the expected order). Checks never return
// errors: they return false and record an Issue.
//
// # Issues
//
// Issues are kept in a bounded ring (DefaultIssueCapacity). When the ring
// is full the oldest issue is evicted and DroppedIssues is incremented.
// Severity only selects the log level; it never changes a result.
//
// # Process-wide instance
//
// Components should receive a *Validator built with New. For code that
// cannot, Configure creates a process-wide instance exactly once:
//
//	v, err := correlation.Configure(correlation.WithFormat(`wf-[0-9a-f]{8}`))
//	...
//	v = correlation.MustInstance()
//
// # Tracking
//
// A Tracker subscribed to "*" buffers dispatched events per correlation id
// so a workflow can be validated once it finishes:
//
//	tracker := correlation.NewTracker(v, correlation.DefaultTrackerConfig)
//	bus.Subscribe("*", tracker)
//	...
//	ok := tracker.Validate("wf-1", correlation.SequenceSpec{
//		OriginTypes:   []string{"workflow.started"},
//		TerminalTypes: []string{"workflow.completed"},
//	})
package correlation
