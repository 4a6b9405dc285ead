package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cityfix/internal/user/models"
	id "cityfix/pkg/domain"
	dErrors "cityfix/pkg/domain-errors"
	"cityfix/pkg/platform/httputil"
	authmw "cityfix/pkg/platform/middleware/auth"
	"cityfix/pkg/requestcontext"
)

// Service defines the user operations the handler needs.
type Service interface {
	Register(ctx context.Context, reg models.Registration) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.User, string, error)
	Get(ctx context.Context, userID id.UserID) (*models.User, error)
	UpdateProfile(ctx context.Context, actor requestcontext.Identity, p models.ProfileUpdate) (*models.User, error)
	TokenTTL() time.Duration
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Handler wires user endpoints to the user service.
type Handler struct {
	service Service
	logger  *slog.Logger
	cookie  CookieConfig
}

func New(service Service, logger *slog.Logger, cookie CookieConfig) *Handler {
	if cookie.Name == "" {
		cookie.Name = authmw.DefaultCookieName
	}
	return &Handler{service: service, logger: logger, cookie: cookie}
}

// Register mounts user endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
		r.Post("/register", h.HandleRegister)
		r.Post("/login", h.HandleLogin)
		r.Post("/logout", h.HandleLogout)
		r.Get("/me", h.HandleMe)
		r.Put("/me", h.HandleUpdateMe)
		r.Get("/{id}", h.HandleGet)
	})
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	user, err := h.service.Register(ctx, req.Registration())
	if err != nil {
		h.logger.WarnContext(ctx, "registration failed",
			"request_id", requestID,
			"username", req.Username,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

// HandleLogin sets the session cookie. The token never appears in the body.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	user, token, err := h.service.Login(ctx, req.Username, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	authmw.SetTokenCookie(w, h.cookie.Name, token, h.service.TokenTTL(), h.cookie.Secure)
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) HandleLogout(w http.ResponseWriter, _ *http.Request) {
	authmw.ClearTokenCookie(w, h.cookie.Name, h.cookie.Secure)
	httputil.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requestcontext.IdentityFrom(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	user, err := h.service.Get(ctx, actor.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor, ok := requestcontext.IdentityFrom(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	user, err := h.service.UpdateProfile(ctx, actor, req.Update())
	if err != nil {
		h.logger.WarnContext(ctx, "profile update failed",
			"request_id", requestID,
			"user_id", actor.UserID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.service.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPublicResponse(user))
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: "user-service"})
}
