// Package broker defines the publish/consume contract shared by every
// transport (in-process memory, RabbitMQ, Kafka): messages, deliveries,
// handlers, topology, and the consumer outcome policy.
package broker

import (
	"context"
	"errors"
	"time"
)

// ContentTypeJSON is the content type of every envelope published by cityfix.
const ContentTypeJSON = "application/json"

// ErrDeliveryUnavailable is returned by Publish when the broker does not
// accept a message (unreachable, closed, or a negative confirm).
var ErrDeliveryUnavailable = errors.New("broker delivery unavailable")

// Message is what a producer hands to the broker.
type Message struct {
	MessageID   string
	ContentType string
	Timestamp   time.Time
	Headers     map[string]string
	Body        []byte
}

// Delivery is a message handed to a consumer, together with its routing data.
type Delivery struct {
	Message
	Exchange    string
	RoutingKey  string
	Redelivered bool
}

// Handler applies one delivery. A nil return acknowledges the delivery;
// an error (or panic) leaves it unacknowledged.
type Handler interface {
	Handle(ctx context.Context, d *Delivery) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, d *Delivery) error

func (f HandlerFunc) Handle(ctx context.Context, d *Delivery) error {
	return f(ctx, d)
}

// Publisher sends a message to an exchange with a routing key and returns
// once the broker has accepted it. It never waits for consumers.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, msg Message) error
}

// Broker is a topic broker transport.
type Broker interface {
	Publisher
	// Declare creates the topology. Redeclaring identical entities is a no-op.
	Declare(ctx context.Context, t Topology) error
	// Consume delivers messages from queue to h, one at a time, until ctx is
	// done. It returns nil on cancellation.
	Consume(ctx context.Context, queue string, h Handler) error
	Close() error
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return "permanent: " + e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The consumer dead-letters or
// discards the delivery instead of requeueing it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func cloneHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Clone returns a copy of m whose headers and body do not alias the original.
func (m Message) Clone() Message {
	c := m
	c.Headers = cloneHeaders(m.Headers)
	if m.Body != nil {
		c.Body = append([]byte(nil), m.Body...)
	}
	return c
}
