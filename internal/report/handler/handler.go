package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cityfix/internal/report/models"
	id "cityfix/pkg/domain"
	dErrors "cityfix/pkg/domain-errors"
	"cityfix/pkg/platform/httputil"
	"cityfix/pkg/requestcontext"
)

// Service defines the report operations the handler needs.
type Service interface {
	Create(ctx context.Context, actor requestcontext.Identity, in models.CreateInput) (*models.Report, error)
	List(ctx context.Context) ([]*models.Report, error)
	Get(ctx context.Context, reportID id.ReportID) (*models.Report, error)
	Update(ctx context.Context, actor requestcontext.Identity, reportID id.ReportID, patch models.Patch) (*models.Report, error)
	Delete(ctx context.Context, actor requestcontext.Identity, reportID id.ReportID) error
}

// Handler wires report endpoints to the report service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts report endpoints on the router. Reads are public; writes
// need the identity attached by the auth filter.
func (h *Handler) Register(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateReportRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	report, err := h.service.Create(ctx, actor, req.Input())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create report",
			"request_id", requestID,
			"user_id", actor.UserID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(report))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reports, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list reports",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponses(reports))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportID, err := id.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.service.Get(ctx, reportID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(report))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	reportID, err := id.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateReportRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	report, err := h.service.Update(ctx, actor, reportID, req.Patch())
	if err != nil {
		h.logger.WarnContext(ctx, "failed to update report",
			"request_id", requestID,
			"report_id", reportID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(report))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireIdentity(w, r)
	if !ok {
		return
	}
	reportID, err := id.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Delete(ctx, actor, reportID); err != nil {
		h.logger.WarnContext(ctx, "failed to delete report",
			"request_id", requestcontext.RequestID(ctx),
			"report_id", reportID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: "report-service"})
}

func (h *Handler) requireIdentity(w http.ResponseWriter, r *http.Request) (requestcontext.Identity, bool) {
	actor, ok := requestcontext.IdentityFrom(r.Context())
	if !ok {
		h.logger.WarnContext(r.Context(), "unauthenticated report write",
			"request_id", requestcontext.RequestID(r.Context()),
			"method", r.Method,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return requestcontext.Identity{}, false
	}
	return actor, true
}
