// Package critical publishes load-bearing events.
//
// Publish blocks until the broker accepts the message and returns
// DeliveryUnavailable when it does not. The calling operation must fail
// with it: report creation rolls back its transaction when report.created
// cannot be published.
package critical

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cityfix/internal/platform/broker"
	"cityfix/internal/platform/metrics"
	dErrors "cityfix/pkg/domain-errors"
	"cityfix/pkg/platform/events"
)

const policy = "critical"

type Publisher struct {
	broker  broker.Publisher
	clock   *events.Clock
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

// WithClock shares a clock between publishers of one process.
func WithClock(c *events.Clock) Option {
	return func(p *Publisher) {
		p.clock = c
	}
}

func New(b broker.Publisher, opts ...Option) *Publisher {
	p := &Publisher{broker: b}
	for _, opt := range opts {
		opt(p)
	}
	if p.clock == nil {
		p.clock = events.NewClock(nil)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Publish stamps occurred_at when unset and sends env synchronously.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, env events.Envelope) error {
	ctx, span := otel.Tracer("cityfix/events").Start(ctx, "publish "+routingKey,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", exchange),
			attribute.String("messaging.rabbitmq.destination.routing_key", routingKey),
		),
	)
	defer span.End()

	if env.OccurredAt.IsZero() {
		env.OccurredAt = p.clock.Now()
	}
	msg, err := events.NewMessage(ctx, env)
	if err != nil {
		span.RecordError(err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode event")
	}
	span.SetAttributes(attribute.String("messaging.message.id", msg.MessageID))

	start := time.Now()
	if err := p.broker.Publish(ctx, exchange, routingKey, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		p.metrics.IncPublishFailure(exchange, policy)
		p.logger.ErrorContext(ctx, "event publish failed",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.MessageID,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeDeliveryUnavailable, "event delivery unavailable")
	}

	p.metrics.IncPublished(exchange, routingKey)
	p.logger.DebugContext(ctx, "event published",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.MessageID,
		"duration", time.Since(start),
	)
	return nil
}
