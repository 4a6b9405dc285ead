package broker

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Outcome is what a transport does with a delivery after the handler ran.
type Outcome int

const (
	OutcomeAck Outcome = iota
	OutcomeRequeue
	OutcomeDeadLetter
	OutcomeDiscard
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAck:
		return "ack"
	case OutcomeRequeue:
		return "requeue"
	case OutcomeDeadLetter:
		return "dead_letter"
	case OutcomeDiscard:
		return "discard"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Processor runs a handler against one delivery and decides its outcome.
// Transports own the delivery mechanics; the policy lives here so every
// transport behaves the same.
type Processor struct {
	queue    Queue
	handler  Handler
	settings Settings
}

// NewProcessor validates the policy for queue. A redelivery limit needs a
// dead-letter exchange, otherwise the message would be lost when the limit
// is reached. Dead-letter queues themselves are never limited.
func NewProcessor(queue Queue, handler Handler, settings Settings) (*Processor, error) {
	if handler == nil {
		return nil, fmt.Errorf("queue %s: handler is required", queue.Name)
	}
	if IsDeadLetterQueue(queue.Name) {
		settings.MaxRedeliveries = 0
	}
	if settings.MaxRedeliveries > 0 && queue.DeadLetterExchange == "" {
		return nil, fmt.Errorf("queue %s: redelivery limit %d requires a dead-letter exchange",
			queue.Name, settings.MaxRedeliveries)
	}
	if settings.Logger == nil {
		settings.Logger = NewSettings().Logger
	}
	if settings.Attempts == nil {
		settings.Attempts = NewMemoryAttemptTracker()
	}
	return &Processor{queue: queue, handler: handler, settings: settings}, nil
}

// Process applies the handler to d and returns the outcome.
func (p *Processor) Process(ctx context.Context, d *Delivery) Outcome {
	ctx = ExtractTrace(ctx, d.Headers)
	ctx, span := tracer().Start(ctx, "process "+p.queue.Name,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", d.Exchange),
			attribute.String("messaging.rabbitmq.destination.routing_key", d.RoutingKey),
			attribute.String("messaging.message.id", d.MessageID),
			attribute.String("cityfix.queue", p.queue.Name),
		),
	)
	defer span.End()

	start := time.Now()
	err := p.invoke(ctx, d)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	outcome := p.decide(ctx, d, err)
	span.SetAttributes(attribute.String("cityfix.outcome", outcome.String()))
	p.settings.Metrics.ObserveDelivery(p.queue.Name, outcome.String(), time.Since(start).Seconds())
	return outcome
}

func (p *Processor) invoke(ctx context.Context, d *Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return p.handler.Handle(ctx, d)
}

func (p *Processor) decide(ctx context.Context, d *Delivery, err error) Outcome {
	logger := p.settings.Logger
	limited := p.settings.MaxRedeliveries > 0
	key := AttemptKey(p.queue.Name, d)

	if err == nil {
		if limited {
			p.forget(ctx, key)
		}
		return OutcomeAck
	}

	if IsPermanent(err) {
		if limited {
			p.forget(ctx, key)
		}
		if p.queue.DeadLetterExchange != "" {
			logger.ErrorContext(ctx, "permanent handler failure, dead-lettering",
				"queue", p.queue.Name,
				"message_id", d.MessageID,
				"routing_key", d.RoutingKey,
				"error", err,
			)
			return OutcomeDeadLetter
		}
		logger.ErrorContext(ctx, "permanent handler failure, discarding",
			"queue", p.queue.Name,
			"message_id", d.MessageID,
			"routing_key", d.RoutingKey,
			"error", err,
		)
		return OutcomeDiscard
	}

	if !limited {
		logger.WarnContext(ctx, "handler failed, requeueing",
			"queue", p.queue.Name,
			"message_id", d.MessageID,
			"error", err,
		)
		return OutcomeRequeue
	}

	attempts, terr := p.settings.Attempts.Incr(ctx, key)
	if terr != nil {
		logger.WarnContext(ctx, "attempt tracking failed, requeueing",
			"queue", p.queue.Name,
			"message_id", d.MessageID,
			"error", err,
			"tracker_error", terr,
		)
		return OutcomeRequeue
	}
	if attempts > p.settings.MaxRedeliveries {
		logger.ErrorContext(ctx, "redelivery limit reached, dead-lettering",
			"queue", p.queue.Name,
			"message_id", d.MessageID,
			"attempts", attempts,
			"error", err,
		)
		p.forget(ctx, key)
		return OutcomeDeadLetter
	}
	logger.WarnContext(ctx, "handler failed, requeueing",
		"queue", p.queue.Name,
		"message_id", d.MessageID,
		"attempt", attempts,
		"max_redeliveries", p.settings.MaxRedeliveries,
		"error", err,
	)
	return OutcomeRequeue
}

func (p *Processor) forget(ctx context.Context, key string) {
	if err := p.settings.Attempts.Reset(ctx, key); err != nil {
		p.settings.Logger.DebugContext(ctx, "failed to reset attempt count", "key", key, "error", err)
	}
}

// DeadLetterHeaders returns the headers stamped on a dead-lettered copy.
func DeadLetterHeaders(queue string, d *Delivery) map[string]string {
	h := cloneHeaders(d.Headers)
	h[HeaderDeathQueue] = queue
	h[HeaderOriginalExchange] = d.Exchange
	h[HeaderOriginalRoutingKey] = d.RoutingKey
	return h
}

const (
	HeaderRoutingKey         = "x-routing-key"
	HeaderDeathQueue         = "x-death-queue"
	HeaderOriginalExchange   = "x-original-exchange"
	HeaderOriginalRoutingKey = "x-original-routing-key"
)
