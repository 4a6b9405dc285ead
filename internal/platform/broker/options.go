package broker

import (
	"io"
	"log/slog"
	"time"

	"cityfix/internal/platform/metrics"
)

// Settings carries the consumer policy and instrumentation shared by every
// transport.
type Settings struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Attempts AttemptTracker
	// MaxRedeliveries bounds redelivery of a failing message. Zero keeps
	// redelivering until the handler succeeds.
	MaxRedeliveries int
	// RedeliveryDelay pauses a consumer after a requeue.
	RedeliveryDelay time.Duration
	Prefetch        int
}

// Option configures Settings.
type Option func(*Settings)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Settings) {
		s.Logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Settings) {
		s.Metrics = m
	}
}

// WithAttemptTracker sets where redelivery attempts are counted.
func WithAttemptTracker(t AttemptTracker) Option {
	return func(s *Settings) {
		s.Attempts = t
	}
}

func WithMaxRedeliveries(n int) Option {
	return func(s *Settings) {
		s.MaxRedeliveries = n
	}
}

func WithRedeliveryDelay(d time.Duration) Option {
	return func(s *Settings) {
		s.RedeliveryDelay = d
	}
}

func WithPrefetch(n int) Option {
	return func(s *Settings) {
		s.Prefetch = n
	}
}

// NewSettings applies opts over the defaults.
func NewSettings(opts ...Option) Settings {
	s := Settings{Prefetch: 1}
	for _, opt := range opts {
		opt(&s)
	}
	if s.Logger == nil {
		s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.Attempts == nil {
		s.Attempts = NewMemoryAttemptTracker()
	}
	if s.MaxRedeliveries < 0 {
		s.MaxRedeliveries = 0
	}
	if s.Prefetch <= 0 {
		s.Prefetch = 1
	}
	return s
}
