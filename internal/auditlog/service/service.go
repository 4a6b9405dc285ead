package service

import (
	"context"
	"log/slog"

	"cityfix/internal/auditlog/models"
	dErrors "cityfix/pkg/domain-errors"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

type Store interface {
	Find(ctx context.Context, f models.Filter) ([]models.Record, error)
}

// Service answers audit log queries.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query applies a single criterion chosen in order: user, event type, time
// range. With none set it returns the most recent entries. Limit caps every
// mode.
func (s *Service) Query(ctx context.Context, q models.Filter) ([]models.Record, error) {
	f, err := narrow(q)
	if err != nil {
		return nil, err
	}
	records, err := s.store.Find(ctx, f)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to query audit logs", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query audit logs")
	}
	return records, nil
}

func narrow(q models.Filter) (models.Filter, error) {
	limit := q.Limit
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < 0:
		return models.Filter{}, dErrors.New(dErrors.CodeBadRequest, "limit must be positive")
	case limit > MaxLimit:
		limit = MaxLimit
	}

	switch {
	case !q.UserID.IsZero():
		return models.Filter{UserID: q.UserID, Limit: limit}, nil
	case q.EventType != "":
		return models.Filter{EventType: q.EventType, Limit: limit}, nil
	case !q.From.IsZero() || !q.To.IsZero():
		if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
			return models.Filter{}, dErrors.New(dErrors.CodeBadRequest, "to must not be before from")
		}
		return models.Filter{From: q.From, To: q.To, Limit: limit}, nil
	default:
		return models.Filter{Limit: limit}, nil
	}
}
