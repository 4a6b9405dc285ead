package testutil

import (
	"net/http"

	id "cityfix/pkg/domain"
	"cityfix/pkg/requestcontext"
)

// WithIdentity attaches the identity the auth filter would set for an
// authenticated request.
func WithIdentity(req *http.Request, userID id.UserID, username string) *http.Request {
	ctx := requestcontext.WithIdentity(req.Context(), requestcontext.Identity{UserID: userID, Username: username})
	return req.WithContext(ctx)
}
