package correlation

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"github.com/randalmurphal/agentbus/pkg/agentbus/event"
	"github.com/randalmurphal/agentbus/pkg/agentbus/observability"
)

// OrderPolicy controls how events beyond an expected order are treated.
type OrderPolicy int

const (
	// OrderTolerant accepts extra events after a matching ordered prefix.
	OrderTolerant OrderPolicy = iota

	// OrderStrict requires the sequence length to equal the expected order
	// length and records UNEXPECTED_TRAILING_EVENTS otherwise.
	OrderStrict
)

// String returns the policy name.
func (p OrderPolicy) String() string {
	if p == OrderStrict {
		return "strict"
	}
	return "tolerant"
}

// Sink receives a copy of every recorded issue, typically for persistence.
type Sink interface {
	Append(issue Issue) error
}

// Option configures a Validator.
type Option func(*options)

type options struct {
	format   string
	capacity int
	order    OrderPolicy
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	sink     Sink
}

// WithFormat sets the correlation id format. The pattern is anchored at the
// start of the id, so "wf-" accepts "wf-123". Add "$" to require a full match.
func WithFormat(pattern string) Option {
	return func(o *options) {
		o.format = pattern
	}
}

// WithIssueCapacity bounds the issue log. Values <= 0 use DefaultIssueCapacity.
func WithIssueCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithOrderPolicy sets the trailing-event policy for order checks.
func WithOrderPolicy(p OrderPolicy) Option {
	return func(o *options) {
		o.order = p
	}
}

// WithLogger sets the logger used to report issues.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the recorder that counts issues.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithSink forwards every recorded issue to sink.
func WithSink(sink Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// Validator checks correlation id discipline on single events and on event
// sequences. Results are returned as bools; the reasons are kept in a
// bounded issue log. A Validator is safe for concurrent use.
type Validator struct {
	format  *regexp.Regexp
	pattern string
	order   OrderPolicy
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	sink    Sink
	issues  *issueLog
}

// New creates a Validator. It fails only when the format does not compile.
func New(opts ...Option) (*Validator, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	v := &Validator{
		pattern: o.format,
		order:   o.order,
		logger:  o.logger,
		metrics: o.metrics,
		sink:    o.sink,
		issues:  newIssueLog(o.capacity),
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	if v.metrics == nil {
		v.metrics = observability.NoopMetrics{}
	}
	if o.format != "" {
		re, err := regexp.Compile("^(?:" + o.format + ")")
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidFormat, o.format, err)
		}
		v.format = re
	}
	return v, nil
}

// Format returns the configured format pattern, or "" when none is set.
func (v *Validator) Format() string {
	return v.pattern
}

// OrderPolicy returns the configured trailing-event policy.
func (v *Validator) OrderPolicy() OrderPolicy {
	return v.order
}

// ValidateEvent checks one event. The id must be present; when present it
// must match the format (WARNING) and equal contextID if one is given
// (ERROR). A missing id stops the remaining checks.
func (v *Validator) ValidateEvent(evt event.Event, contextID string) bool {
	details := eventDetails(evt)

	if !evt.HasCorrelationID() {
		v.record(IssueMissingID, SeverityError,
			fmt.Sprintf("event %s on %q has no correlation id", evt.ID, evt.Topic), details)
		return false
	}

	valid := true
	id := evt.CorrelationID

	if v.format != nil && !v.format.MatchString(id) {
		d := details
		d.Format = v.pattern
		v.record(IssueInvalidFormat, SeverityWarning,
			fmt.Sprintf("correlation id %q does not match format %q", id, v.pattern), d)
		valid = false
	}

	if contextID != "" && contextID != id {
		d := details
		d.ExpectedID = contextID
		d.FoundID = id
		v.record(IssueContextMismatch, SeverityError,
			fmt.Sprintf("event %s has correlation id %q, expected %q", evt.ID, id, contextID), d)
		valid = false
	}

	return valid
}

// SequenceSpec describes the expected shape of one workflow. Empty lists
// disable the corresponding check.
type SequenceSpec struct {
	// CorrelationID is the workflow id. Defaults to the first event's id.
	CorrelationID string

	// OriginTypes are topics that may start the workflow.
	OriginTypes []string

	// TerminalTypes are topics that may end the workflow.
	TerminalTypes []string

	// RequireAllOrigin requires every origin type to be present instead of any.
	RequireAllOrigin bool

	// RequireAllTerminal requires every terminal type to be present instead of any.
	RequireAllTerminal bool

	// Order lists the topics expected at the head of the sequence, in order.
	Order []string
}

// ValidateEventSequence checks a workflow. Every event is validated against
// the workflow id, then origin, terminal and order checks run. All issues
// are recorded in one pass; the result is true only if every check passed.
// An empty sequence is valid.
func (v *Validator) ValidateEventSequence(events []event.Event, spec SequenceSpec) bool {
	if len(events) == 0 {
		return true
	}

	target := spec.CorrelationID
	if target == "" {
		target = events[0].CorrelationID
	}
	if target == "" {
		d := eventDetails(events[0])
		d.Length = len(events)
		v.record(IssueInvalidSequenceStart, SeverityError,
			fmt.Sprintf("sequence starts with event %s without a correlation id", events[0].ID), d)
		return false
	}

	valid := true
	for _, evt := range events {
		if !v.ValidateEvent(evt, target) {
			valid = false
		}
	}

	topics := make(map[string]struct{}, len(events))
	for _, evt := range events {
		topics[evt.Topic] = struct{}{}
	}

	if len(spec.OriginTypes) > 0 && !v.checkPresence(topics, target, spec.OriginTypes, spec.RequireAllOrigin,
		IssueMissingOriginEvent, IssueMissingAllOriginEvents, "origin") {
		valid = false
	}
	if len(spec.TerminalTypes) > 0 && !v.checkPresence(topics, target, spec.TerminalTypes, spec.RequireAllTerminal,
		IssueMissingTerminalEvent, IssueMissingAllTerminalEvents, "terminal") {
		valid = false
	}
	if len(spec.Order) > 0 && !v.checkOrder(events, target, spec.Order) {
		valid = false
	}

	return valid
}

func (v *Validator) checkPresence(
	topics map[string]struct{},
	target string,
	expected []string,
	requireAll bool,
	anyType, allType IssueType,
	kind string,
) bool {
	want := make(map[string]struct{}, len(expected))
	for _, t := range expected {
		want[t] = struct{}{}
	}
	var found []string
	for t := range want {
		if _, ok := topics[t]; ok {
			found = append(found, t)
		}
	}
	sort.Strings(found)

	d := Details{
		CorrelationID: target,
		ExpectedTypes: append([]string(nil), expected...),
		FoundTypes:    found,
	}

	if requireAll {
		if len(found) == len(want) {
			return true
		}
		v.record(allType, SeverityError,
			fmt.Sprintf("workflow %q is missing %s events: found %v of %v", target, kind, found, expected), d)
		return false
	}

	if len(found) > 0 {
		return true
	}
	v.record(anyType, SeverityError,
		fmt.Sprintf("workflow %q has none of the %s events %v", target, kind, expected), d)
	return false
}

func (v *Validator) checkOrder(events []event.Event, target string, order []string) bool {
	if len(events) < len(order) {
		v.record(IssueIncompleteEventOrder, SeverityError,
			fmt.Sprintf("workflow %q has %d events, expected order needs %d", target, len(events), len(order)),
			Details{
				CorrelationID: target,
				ExpectedTypes: append([]string(nil), order...),
				Length:        len(events),
				ExpectedLen:   len(order),
			})
		return false
	}

	for i, want := range order {
		got := events[i].Topic
		if got == want {
			continue
		}
		d := eventDetails(events[i])
		d.CorrelationID = target
		idx := i
		d.Index = &idx
		d.ExpectedType = want
		d.ActualType = got
		v.record(IssueInvalidEventOrder, SeverityError,
			fmt.Sprintf("workflow %q: event %d is %q, expected %q", target, i, got, want), d)
		return false
	}

	if v.order == OrderStrict && len(events) > len(order) {
		v.record(IssueUnexpectedTrailingEvents, SeverityWarning,
			fmt.Sprintf("workflow %q has %d events after the expected order", target, len(events)-len(order)),
			Details{
				CorrelationID: target,
				Length:        len(events),
				ExpectedLen:   len(order),
			})
		return false
	}
	return true
}

func (v *Validator) record(typ IssueType, sev Severity, msg string, details Details) {
	issue := Issue{
		Type:      typ,
		Severity:  sev,
		Message:   msg,
		Timestamp: time.Now(),
		Details:   details,
	}
	v.issues.append(issue)

	observability.LogIssue(v.logger, sev.Level(), string(typ), msg, details.attrs()...)
	v.metrics.RecordIssue(context.Background(), string(typ), string(sev))

	if v.sink != nil {
		if err := v.sink.Append(issue); err != nil {
			v.logger.Warn("issue sink append failed",
				slog.String("issue_type", string(typ)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Issues returns a copy of the recorded issues, oldest first.
func (v *Validator) Issues() []Issue {
	return v.issues.snapshot()
}

// IssuesOfType returns the recorded issues of one type, oldest first.
func (v *Validator) IssuesOfType(typ IssueType) []Issue {
	var out []Issue
	for _, issue := range v.issues.snapshot() {
		if issue.Type == typ {
			out = append(out, issue)
		}
	}
	return out
}

// ResetIssues clears the issue log and the dropped counter.
func (v *Validator) ResetIssues() {
	v.issues.reset()
}

// IssueCount returns the number of issues currently held.
func (v *Validator) IssueCount() int {
	return v.issues.len()
}

// DroppedIssues returns how many issues were evicted since the last reset.
func (v *Validator) DroppedIssues() int64 {
	return v.issues.droppedCount()
}

func eventDetails(evt event.Event) Details {
	return Details{
		EventID:       evt.ID,
		Topic:         evt.Topic,
		SourceID:      evt.SourceID,
		CorrelationID: evt.CorrelationID,
	}
}
