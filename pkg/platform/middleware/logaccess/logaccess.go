// Package logaccess guards the audit log endpoint with a shared secret
// passed as a query parameter.
package logaccess

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"cityfix/pkg/platform/httputil"
	"cityfix/pkg/requestcontext"
)

// PasswordParam is the query parameter carrying the shared secret.
const PasswordParam = "password"

// RequirePassword answers 401 unless the password query parameter equals
// expected. An empty expected password rejects every request.
func RequirePassword(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given := r.URL.Query().Get(PasswordParam)
			if expected == "" || subtle.ConstantTimeCompare([]byte(given), []byte(expected)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access attempt to logs",
					"client_ip", requestcontext.ClientIP(ctx),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{
					Error:            "unauthorized",
					ErrorDescription: "invalid password",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
