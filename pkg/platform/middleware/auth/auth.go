// Package auth is the request authentication filter shared by every cityfix
// HTTP entry point.
//
// Authenticate never rejects a request. It attaches an identity when the
// request carries a valid token and otherwise leaves the context untouched;
// each endpoint decides whether a missing identity means 401.
package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	id "cityfix/pkg/domain"
	"cityfix/pkg/requestcontext"
)

// DefaultCookieName is the cookie the session token is stored in.
const DefaultCookieName = "JWT_TOKEN"

// TokenValidator validates a raw token.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims are the identity fields the filter needs from a valid token.
type Claims struct {
	UserID   id.UserID
	Username string
}

// Authenticate reads the token from cookieName, falling back to an
// "Authorization: Bearer" header.
func Authenticate(validator TokenValidator, cookieName string, logger *slog.Logger) func(http.Handler) http.Handler {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, ok := requestcontext.IdentityFrom(ctx); ok {
				next.ServeHTTP(w, r)
				return
			}

			token := TokenFromRequest(r, cookieName)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.DebugContext(ctx, "ignoring invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			ctx = requestcontext.WithIdentity(ctx, requestcontext.Identity{
				UserID:   claims.UserID,
				Username: claims.Username,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest returns the cookie token, or the bearer token when the
// cookie is absent or empty.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// SetTokenCookie stores token in an HttpOnly, SameSite=Strict cookie that
// lives as long as the token.
func SetTokenCookie(w http.ResponseWriter, cookieName, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearTokenCookie expires the session cookie.
func ClearTokenCookie(w http.ResponseWriter, cookieName string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}
