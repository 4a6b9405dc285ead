// Package sink persists audit envelopes consumed from the audit queue.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cityfix/internal/auditlog/models"
	"cityfix/internal/platform/metrics"
	"cityfix/pkg/platform/events"
)

type Store interface {
	Append(ctx context.Context, r *models.Record) error
}

// Sink stores every audit envelope it receives. Redelivered envelopes are
// stored again.
type Sink struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Sink)

func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

func New(store Store, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{store: store, logger: logger, metrics: m, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle decodes the audit payload and appends it. A missing timestamp is
// replaced with the receipt time.
func (s *Sink) Handle(ctx context.Context, env events.Envelope) error {
	a, err := events.DecodeAudit(env)
	if err != nil {
		return err
	}

	ts := a.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	r := &models.Record{
		EventType:  a.EventType,
		UserID:     a.UserID,
		Username:   a.Username,
		EntityType: a.EntityType,
		EntityID:   a.EntityID,
		Action:     a.Action,
		Details:    a.Details,
		IPAddress:  a.IPAddress,
		Timestamp:  ts.UTC(),
	}
	if err := s.store.Append(ctx, r); err != nil {
		s.logger.ErrorContext(ctx, "failed to store audit log",
			"event_type", a.EventType,
			"action", a.Action,
			"error", err,
		)
		return fmt.Errorf("store audit log: %w", err)
	}

	s.metrics.IncAuditRecordsStored()
	s.logger.DebugContext(ctx, "audit log stored",
		"id", r.ID,
		"event_type", r.EventType,
		"action", r.Action,
	)
	return nil
}
