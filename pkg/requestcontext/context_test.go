package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdentityAbsentByDefault(t *testing.T) {
	_, ok := IdentityFrom(context.Background())
	assert.False(t, ok)
}

func TestIdentityRoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: 1, Username: "alice"})
	ident, ok := IdentityFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, Identity{UserID: 1, Username: "alice"}, ident)
}

func TestNowPrefersInjectedTime(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
	assert.WithinDuration(t, time.Now(), Now(context.Background()), time.Second)
}

func TestClientMetadata(t *testing.T) {
	ctx := WithClientMetadata(context.Background(), "10.0.0.1", "curl/8.0")
	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Equal(t, "curl/8.0", UserAgent(ctx))
	assert.Empty(t, RequestID(ctx))
}
