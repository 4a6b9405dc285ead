// Package audittrail turns user-visible actions into audit envelopes on the
// audit exchange, routed by "audit.<action>".
package audittrail

import (
	"context"
	"log/slog"
	"time"

	"cityfix/pkg/platform/events"
	"cityfix/pkg/requestcontext"
)

// Publisher sends an envelope without reporting failure.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, env events.Envelope)
}

// Recorder publishes audit envelopes.
type Recorder struct {
	publisher Publisher
	exchange  string
	logger    *slog.Logger
}

func New(publisher Publisher, exchange string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{publisher: publisher, exchange: exchange, logger: logger}
}

// Record publishes a. Timestamp defaults to the request time and IPAddress
// to the client IP found in ctx.
func (r *Recorder) Record(ctx context.Context, a events.Audit) {
	if a.Timestamp.IsZero() {
		a.Timestamp = requestcontext.Now(ctx).UTC()
	}
	if a.IPAddress == "" {
		a.IPAddress = requestcontext.ClientIP(ctx)
	}
	env, err := events.NewAuditEnvelope(time.Time{}, a)
	if err != nil {
		r.logger.ErrorContext(ctx, "audit envelope dropped", "action", a.Action, "error", err)
		return
	}
	r.publisher.Publish(ctx, r.exchange, events.AuditRoutingKey(a.Action), env)
}
