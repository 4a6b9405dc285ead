package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cityfix/internal/auditlog/models"
	id "cityfix/pkg/domain"
	dErrors "cityfix/pkg/domain-errors"
	"cityfix/pkg/platform/httputil"
	"cityfix/pkg/platform/middleware/logaccess"
	"cityfix/pkg/requestcontext"
)

type Service interface {
	Query(ctx context.Context, q models.Filter) ([]models.Record, error)
}

// Handler serves the audit log read API.
type Handler struct {
	service  Service
	logger   *slog.Logger
	password string
}

func New(service Service, logger *slog.Logger, password string) *Handler {
	return &Handler{service: service, logger: logger, password: password}
}

// Register mounts /logs behind the shared password and a public health check.
func (h *Handler) Register(r chi.Router) {
	r.Route("/logs", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
		r.With(logaccess.RequirePassword(h.password, h.logger)).Get("/", h.HandleQuery)
	})
}

func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.service.Query(ctx, q)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to query audit logs",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponses(records))
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: "log-service"})
}

func parseQuery(v url.Values) (models.Filter, error) {
	var q models.Filter
	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return q, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
		}
		q.Limit = n
	}
	if raw := v.Get("userId"); raw != "" {
		userID, err := id.ParseUserID(raw)
		if err != nil {
			return q, err
		}
		q.UserID = userID
	}
	q.EventType = v.Get("eventType")

	var err error
	if q.From, err = parseTime(v.Get("from"), "from"); err != nil {
		return q, err
	}
	if q.To, err = parseTime(v.Get("to"), "to"); err != nil {
		return q, err
	}
	return q, nil
}

func parseTime(raw, field string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, field+" must be an RFC 3339 timestamp")
	}
	return t.UTC(), nil
}
