// Package counter keeps each user's reports_count in step with
// report.created events.
package counter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cityfix/internal/platform/metrics"
	id "cityfix/pkg/domain"
	"cityfix/pkg/platform/events"
	"cityfix/pkg/platform/sentinel"
)

// Store increments the stored counter atomically and returns the new value.
type Store interface {
	IncrementReportsCount(ctx context.Context, userID id.UserID) (int, error)
}

// Updater applies report.created envelopes to the user store. It is
// registered on the user counter queue through consumer.Router.
type Updater struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(store Store, logger *slog.Logger, m *metrics.Metrics) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{store: store, logger: logger, metrics: m}
}

// Handle increments the owner's counter by one. An unknown user is logged
// and dropped. A store failure is returned so the message is redelivered;
// every attempt re-reads the stored value.
func (u *Updater) Handle(ctx context.Context, env events.Envelope) error {
	event, err := events.DecodeReportCreated(env)
	if err != nil {
		return err
	}

	count, err := u.store.IncrementReportsCount(ctx, event.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			u.logger.WarnContext(ctx, "user not found, reports counter not updated",
				"user_id", event.UserID,
				"report_id", event.ReportID,
			)
			return nil
		}
		u.logger.ErrorContext(ctx, "failed to update reports counter",
			"user_id", event.UserID,
			"report_id", event.ReportID,
			"error", err,
		)
		return fmt.Errorf("increment reports count for user %s: %w", event.UserID, err)
	}

	u.metrics.IncReportCounterUpdates()
	u.logger.InfoContext(ctx, "reports counter updated",
		"user_id", event.UserID,
		"report_id", event.ReportID,
		"reports_count", count,
	)
	return nil
}
