package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cityfix/internal/platform/metrics"
	"cityfix/internal/user/device"
	"cityfix/internal/user/models"
	id "cityfix/pkg/domain"
	dErrors "cityfix/pkg/domain-errors"
	"cityfix/pkg/platform/events"
	"cityfix/pkg/platform/sentinel"
	"cityfix/pkg/requestcontext"
)

// Store persists users.
type Store interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, u *models.User) error
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	GenerateToken(userID id.UserID, username string, ttl time.Duration) (string, error)
}

// AuditRecorder records user-visible actions without reporting failure.
type AuditRecorder interface {
	Record(ctx context.Context, a events.Audit)
}

var errInvalidCredentials = dErrors.New(dErrors.CodeUnauthorized, "invalid username or password")

// Service handles registration, login and profile management.
type Service struct {
	store      Store
	tokens     TokenIssuer
	audit      AuditRecorder
	tokenTTL   time.Duration
	bcryptCost int
	logger     *slog.Logger
	metrics    *metrics.Metrics
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

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithBcryptCost lowers hashing cost in tests.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func New(store Store, tokens TokenIssuer, audit AuditRecorder, opts ...Option) *Service {
	s := &Service{
		store:      store,
		tokens:     tokens,
		audit:      audit,
		tokenTTL:   24 * time.Hour,
		bcryptCost: bcrypt.DefaultCost,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TokenTTL is the lifetime of issued tokens and their cookie.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}

// Register creates an account with a unique username and email.
func (s *Service) Register(ctx context.Context, reg models.Registration) (*models.User, error) {
	taken, err := s.store.ExistsByUsername(ctx, reg.Username)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check username")
	}
	if taken {
		s.logger.WarnContext(ctx, "username already exists", "username", reg.Username)
		return nil, dErrors.New(dErrors.CodeConflict, "username already exists")
	}
	taken, err = s.store.ExistsByEmail(ctx, reg.Email)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
	}
	if taken {
		s.logger.WarnContext(ctx, "email already exists", "username", reg.Username)
		return nil, dErrors.New(dErrors.CodeConflict, "email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	user := &models.User{
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: string(hash),
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		Phone:        reg.Phone,
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "username or email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save user")
	}

	s.metrics.IncUsersRegistered()
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	s.record(ctx, user, models.ActionRegister, "User registered")
	return user, nil
}

// Login checks credentials and issues a token. Failed attempts are audited
// with the attempted username.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, string, error) {
	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.loginFailed(ctx, nil, username, "unknown username")
			return nil, "", errInvalidCredentials
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.loginFailed(ctx, user, username, "invalid password")
		return nil, "", errInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username, s.tokenTTL)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	s.record(ctx, user, models.ActionLogin,
		"User logged in from "+device.ParseUserAgent(requestcontext.UserAgent(ctx)))
	return user, token, nil
}

func (s *Service) Get(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

// UpdateProfile changes the profile of the authenticated user.
func (s *Service) UpdateProfile(ctx context.Context, actor requestcontext.Identity, p models.ProfileUpdate) (*models.User, error) {
	user, err := s.Get(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if p.Email != "" && !strings.EqualFold(p.Email, user.Email) {
		taken, err := s.store.ExistsByEmail(ctx, p.Email)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
		}
		if taken {
			return nil, dErrors.New(dErrors.CodeConflict, "email already exists")
		}
	}
	user.Apply(p)
	if err := s.store.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "email already exists")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user")
	}
	s.logger.InfoContext(ctx, "user profile updated", "user_id", user.ID)
	s.record(ctx, user, models.ActionUpdate, "User profile updated")
	return user, nil
}

func (s *Service) loginFailed(ctx context.Context, user *models.User, username, reason string) {
	s.logger.WarnContext(ctx, "login failed",
		"username", username,
		"reason", reason,
		"ip_address", requestcontext.ClientIP(ctx),
	)
	a := events.Audit{
		EventType:  events.AuditUser,
		Username:   username,
		EntityType: models.EntityType,
		Action:     models.ActionLoginFailed,
		Details:    "Failed login attempt: " + reason,
	}
	if user != nil {
		a.UserID = user.ID
		a.EntityID = int64(user.ID)
	}
	s.audit.Record(ctx, a)
}

func (s *Service) record(ctx context.Context, user *models.User, action, details string) {
	s.audit.Record(ctx, events.Audit{
		EventType:  events.AuditUser,
		UserID:     user.ID,
		Username:   user.Username,
		EntityType: models.EntityType,
		EntityID:   int64(user.ID),
		Action:     action,
		Details:    details,
	})
}
