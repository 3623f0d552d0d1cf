package agentbus

import (
	"fmt"
	"log/slog"

	"github.com/randalmurphal/agentbus/pkg/agentbus/agent"
	"github.com/randalmurphal/agentbus/pkg/agentbus/config"
	"github.com/randalmurphal/agentbus/pkg/agentbus/correlation"
	"github.com/randalmurphal/agentbus/pkg/agentbus/event"
	"github.com/randalmurphal/agentbus/pkg/agentbus/issuestore"
	"github.com/randalmurphal/agentbus/pkg/agentbus/observability"
)

// System holds one wired set of agentbus components. Fields are read-only
// after New; optional components are nil when disabled.
type System struct {
	Config      config.Config
	Logger      *slog.Logger
	Bus         *event.Bus
	DeadLetters *event.DeadLetterLog
	Validator   *correlation.Validator
	Tracker     *correlation.Tracker
	Agents      *agent.Registry
	Issues      issuestore.Store
}

// Option customizes New.
type Option func(*systemOptions)

type systemOptions struct {
	logger  *slog.Logger
	onError func(evt event.Event, handler string, err error)
}

// WithLogger replaces the logger built from the observability config.
func WithLogger(logger *slog.Logger) Option {
	return func(o *systemOptions) {
		o.logger = logger
	}
}

// WithErrorHandler sets the bus OnError callback.
func WithErrorHandler(fn func(evt event.Event, handler string, err error)) Option {
	return func(o *systemOptions) {
		o.onError = fn
	}
}

// New builds every component described by cfg and wires them together.
func New(cfg config.Config, opts ...Option) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o systemOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = cfg.Observability.NewLogger(nil)
		if err != nil {
			return nil, err
		}
	}

	var metrics observability.MetricsRecorder = observability.NoopMetrics{}
	if cfg.Observability.Metrics {
		metrics = observability.NewMetricsRecorder()
	}
	var spans observability.SpanManager = observability.NoopSpanManager{}
	if cfg.Observability.Tracing {
		spans = observability.NewSpanManager()
	}

	s := &System{Config: cfg, Logger: logger}

	if cfg.Bus.DeadLetterCapacity > 0 {
		s.DeadLetters = event.NewDeadLetterLog(event.DeadLetterConfig{
			Capacity: cfg.Bus.DeadLetterCapacity,
		})
	}

	s.Bus = event.NewBus(event.BusConfig{
		Logger:      logger,
		Metrics:     metrics,
		Spans:       spans,
		DeadLetters: s.DeadLetters,
		OnError:     o.onError,
	})

	store, err := openIssueStore(cfg.Correlation.IssueStore)
	if err != nil {
		return nil, err
	}
	s.Issues = store

	vopts := []correlation.Option{
		correlation.WithFormat(cfg.Correlation.Format),
		correlation.WithIssueCapacity(cfg.Correlation.IssueCapacity),
		correlation.WithLogger(logger),
		correlation.WithMetrics(metrics),
	}
	if cfg.Correlation.StrictOrder {
		vopts = append(vopts, correlation.WithOrderPolicy(correlation.OrderStrict))
	}
	if store != nil {
		vopts = append(vopts, correlation.WithSink(store))
	}
	s.Validator, err = correlation.New(vopts...)
	if err != nil {
		s.closeStore()
		return nil, err
	}

	if cfg.Correlation.Tracker.Enabled {
		s.Tracker = correlation.NewTracker(s.Validator, correlation.TrackerConfig{
			MaxWorkflows: cfg.Correlation.Tracker.MaxWorkflows,
			MaxEvents:    cfg.Correlation.Tracker.MaxEvents,
			Logger:       logger,
		})
		if err := s.Bus.Subscribe(event.Wildcard, s.Tracker); err != nil {
			s.closeStore()
			return nil, fmt.Errorf("subscribe tracker: %w", err)
		}
	}

	s.Agents = agent.NewRegistry(agent.RegistryConfig{
		Bus:      s.Bus,
		Source:   cfg.Agents.Source,
		Logger:   logger,
		SyncEmit: cfg.Agents.SyncEmit,
	})

	logger.Debug("agentbus system ready",
		slog.Bool("tracker", s.Tracker != nil),
		slog.Bool("dead_letters", s.DeadLetters != nil),
		slog.String("issue_store", cfg.Correlation.IssueStore),
	)
	return s, nil
}

func openIssueStore(spec string) (issuestore.Store, error) {
	switch spec {
	case "":
		return nil, nil
	case config.IssueStoreMemory:
		return issuestore.NewMemoryStore(), nil
	default:
		store, err := issuestore.NewSQLiteStore(spec)
		if err != nil {
			return nil, fmt.Errorf("open issue store: %w", err)
		}
		return store, nil
	}
}

// Close waits for in-flight agent lifecycle events and closes the issue
// store. Components remain readable afterwards.
func (s *System) Close() error {
	s.Agents.Wait()
	return s.closeStore()
}

func (s *System) closeStore() error {
	if s.Issues == nil {
		return nil
	}
	if err := s.Issues.Close(); err != nil {
		return fmt.Errorf("close issue store: %w", err)
	}
	return nil
}
