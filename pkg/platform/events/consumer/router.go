// Package consumer adapts envelope handlers to broker deliveries.
package consumer

import (
	"context"
	"errors"
	"log/slog"

	"cityfix/internal/platform/broker"
	"cityfix/pkg/platform/events"
)

// EnvelopeHandler applies one decoded envelope.
type EnvelopeHandler interface {
	Handle(ctx context.Context, env events.Envelope) error
}

// EnvelopeHandlerFunc adapts a function to EnvelopeHandler.
type EnvelopeHandlerFunc func(ctx context.Context, env events.Envelope) error

func (f EnvelopeHandlerFunc) Handle(ctx context.Context, env events.Envelope) error {
	return f(ctx, env)
}

type route struct {
	pattern string
	handler EnvelopeHandler
}

// Router dispatches deliveries to handlers by routing-key pattern. The first
// registered matching pattern wins.
type Router struct {
	routes []route
	logger *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logger: logger}
}

// Register adds a handler for routing keys matching pattern.
func (r *Router) Register(pattern string, handler EnvelopeHandler) {
	r.routes = append(r.routes, route{pattern: pattern, handler: handler})
}

// Handle implements broker.Handler. Undecodable envelopes are permanent
// failures; deliveries without a route are acknowledged.
func (r *Router) Handle(ctx context.Context, d *broker.Delivery) error {
	h := r.match(d.RoutingKey)
	if h == nil {
		r.logger.WarnContext(ctx, "no handler for routing key, skipping message",
			"exchange", d.Exchange,
			"routing_key", d.RoutingKey,
			"message_id", d.MessageID,
		)
		return nil
	}

	env, err := events.Decode(d.Body)
	if err != nil {
		return broker.Permanent(err)
	}
	if err := h.Handle(ctx, env); err != nil {
		if errors.Is(err, events.ErrMalformed) {
			return broker.Permanent(err)
		}
		return err
	}
	return nil
}

func (r *Router) match(routingKey string) EnvelopeHandler {
	for _, rt := range r.routes {
		if broker.MatchRoutingKey(rt.pattern, routingKey) {
			return rt.handler
		}
	}
	return nil
}

var _ broker.Handler = (*Router)(nil)
