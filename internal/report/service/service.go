package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cityfix/internal/platform/metrics"
	"cityfix/internal/report/models"
	id "cityfix/pkg/domain"
	dErrors "cityfix/pkg/domain-errors"
	"cityfix/pkg/platform/events"
	"cityfix/pkg/platform/sentinel"
	"cityfix/pkg/requestcontext"
)

// Store persists reports. Writes made inside TxRunner.RunInTx join its
// transaction.
type Store interface {
	Create(ctx context.Context, r *models.Report) error
	FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error)
	List(ctx context.Context) ([]*models.Report, error)
	Update(ctx context.Context, r *models.Report) error
	Delete(ctx context.Context, reportID id.ReportID) error
}

// TxRunner commits when fn succeeds and rolls back otherwise.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher delivers load-bearing events and reports failure.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, env events.Envelope) error
}

// AuditRecorder records user-visible actions without reporting failure.
type AuditRecorder interface {
	Record(ctx context.Context, a events.Audit)
}

// Service owns report lifecycle rules: ownership checks, defaults and the
// events each change emits.
type Service struct {
	store    Store
	tx       TxRunner
	events   EventPublisher
	audit    AuditRecorder
	exchange string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithReportsExchange overrides the exchange report.created is published to.
func WithReportsExchange(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.exchange = name
		}
	}
}

func New(store Store, tx TxRunner, publisher EventPublisher, audit AuditRecorder, opts ...Option) *Service {
	s := &Service{
		store:    store,
		tx:       tx,
		events:   publisher,
		audit:    audit,
		exchange: events.DefaultNames().ReportsExchange,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create persists a report owned by actor and announces it. The report is
// only kept when report.created was accepted by the broker.
func (s *Service) Create(ctx context.Context, actor requestcontext.Identity, in models.CreateInput) (*models.Report, error) {
	report := models.New(actor.UserID, in)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, report); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save report")
		}
		env, err := events.NewReportCreatedEnvelope(time.Time{}, events.ReportCreated{
			ReportID:  report.ID,
			UserID:    report.UserID,
			Title:     report.Title,
			Status:    report.Status,
			Category:  report.Category,
			Priority:  report.Priority,
			CreatedAt: report.CreatedAt,
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build report event")
		}
		return s.events.Publish(ctx, s.exchange, events.RoutingKeyReportCreated, env)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "report creation rolled back",
			"user_id", actor.UserID,
			"error", err,
		)
		return nil, err
	}

	s.metrics.IncReportsCreated()
	s.logger.InfoContext(ctx, "report created",
		"report_id", report.ID,
		"user_id", report.UserID,
	)
	s.record(ctx, actor, models.ActionCreate, report.ID, "Report created: "+report.Title)
	return report, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Report, error) {
	reports, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reports")
	}
	return reports, nil
}

func (s *Service) Get(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	report, err := s.store.FindByID(ctx, reportID)
	if err != nil {
		return nil, translate(err, reportID)
	}
	return report, nil
}

// Update applies patch when actor owns the report.
func (s *Service) Update(ctx context.Context, actor requestcontext.Identity, reportID id.ReportID, patch models.Patch) (*models.Report, error) {
	report, err := s.owned(ctx, actor, reportID, "update")
	if err != nil {
		return nil, err
	}
	report.Apply(patch)
	if err := s.store.Update(ctx, report); err != nil {
		return nil, translate(err, reportID)
	}
	s.logger.InfoContext(ctx, "report updated", "report_id", reportID, "user_id", actor.UserID)
	s.record(ctx, actor, models.ActionUpdate, report.ID, "Report updated: "+report.Title)
	return report, nil
}

// Delete removes the report when actor owns it.
func (s *Service) Delete(ctx context.Context, actor requestcontext.Identity, reportID id.ReportID) error {
	report, err := s.owned(ctx, actor, reportID, "delete")
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, reportID); err != nil {
		return translate(err, reportID)
	}
	s.logger.InfoContext(ctx, "report deleted", "report_id", reportID, "user_id", actor.UserID)
	s.record(ctx, actor, models.ActionDelete, reportID, "Report deleted: "+report.Title)
	return nil
}

func (s *Service) owned(ctx context.Context, actor requestcontext.Identity, reportID id.ReportID, verb string) (*models.Report, error) {
	report, err := s.store.FindByID(ctx, reportID)
	if err != nil {
		return nil, translate(err, reportID)
	}
	if !report.IsOwnedBy(actor.UserID) {
		s.logger.WarnContext(ctx, "report ownership check failed",
			"report_id", reportID,
			"user_id", actor.UserID,
			"owner_id", report.UserID,
		)
		return nil, dErrors.New(dErrors.CodeForbidden, "you can only "+verb+" your own reports")
	}
	return report, nil
}

func (s *Service) record(ctx context.Context, actor requestcontext.Identity, action string, reportID id.ReportID, details string) {
	s.audit.Record(ctx, events.Audit{
		EventType:  events.AuditReport,
		UserID:     actor.UserID,
		Username:   actor.Username,
		EntityType: models.EntityType,
		EntityID:   int64(reportID),
		Action:     action,
		Details:    details,
	})
}

func translate(err error, reportID id.ReportID) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "report not found with id: "+reportID.String())
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "report store failure")
}
