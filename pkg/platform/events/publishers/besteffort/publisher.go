// Package besteffort publishes events whose loss must never fail the caller.
//
// Publish never returns an error. Failures are logged and counted, each
// attempt is bounded by a timeout, and a circuit breaker sheds publishes
// while the broker is down so requests do not wait on it.
package besteffort

import (
	"context"
	"log/slog"
	"time"

	"cityfix/internal/platform/broker"
	"cityfix/internal/platform/metrics"
	"cityfix/pkg/platform/circuit"
	"cityfix/pkg/platform/events"
)

const (
	policy = "best_effort"

	defaultTimeout = 2 * time.Second
)

type Publisher struct {
	broker  broker.Publisher
	breaker *circuit.Breaker
	clock   *events.Clock
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func WithClock(c *events.Clock) Option {
	return func(p *Publisher) {
		p.clock = c
	}
}

// WithTimeout bounds a single publish attempt.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

func New(b broker.Publisher, opts ...Option) *Publisher {
	p := &Publisher{broker: b, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(p)
	}
	if p.breaker == nil {
		p.breaker = circuit.New("best-effort-publish", circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second))
	}
	if p.clock == nil {
		p.clock = events.NewClock(nil)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Publish sends env if the breaker allows it. The attempt outlives
// cancellation of ctx so a finished request still gets its audit trail.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, env events.Envelope) {
	if !p.breaker.Allow() {
		p.metrics.IncBestEffortDropped("circuit_open")
		p.logger.DebugContext(ctx, "best-effort publish skipped, circuit open",
			"exchange", exchange,
			"routing_key", routingKey,
		)
		return
	}

	if env.OccurredAt.IsZero() {
		env.OccurredAt = p.clock.Now()
	}
	msg, err := events.NewMessage(ctx, env)
	if err != nil {
		p.metrics.IncBestEffortDropped("encode")
		p.logger.ErrorContext(ctx, "best-effort publish dropped, encode failed",
			"routing_key", routingKey,
			"error", err,
		)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.broker.Publish(pubCtx, exchange, routingKey, msg); err != nil {
		_, change := p.breaker.RecordFailure()
		if change.Opened {
			p.metrics.SetCircuitBreakerState(true)
			p.logger.WarnContext(ctx, "best-effort publish circuit opened", "exchange", exchange)
		}
		p.metrics.IncPublishFailure(exchange, policy)
		p.metrics.IncBestEffortDropped("error")
		p.logger.WarnContext(ctx, "best-effort publish failed",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.MessageID,
			"error", err,
		)
		return
	}

	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.metrics.SetCircuitBreakerState(false)
		p.logger.InfoContext(ctx, "best-effort publish circuit closed", "exchange", exchange)
	}
	p.metrics.IncPublished(exchange, routingKey)
}
