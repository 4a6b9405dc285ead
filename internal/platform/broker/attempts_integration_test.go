//go:build integration

package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cityfix/pkg/testutil/containers"
)

func TestRedisAttemptTrackerAgainstRedis(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	a := NewRedisAttemptTracker(rc.Client, time.Minute)
	b := NewRedisAttemptTracker(rc.Client, time.Minute)

	n, err := a.Incr(ctx, "audit.logs.queue:m-1")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = b.Incr(ctx, "audit.logs.queue:m-1")
	require.NoError(t, err)
	require.Equal(t, 2, n, "instances share counts")

	keys, err := rc.AttemptKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"cityfix:attempts:audit.logs.queue:m-1"}, keys)

	require.NoError(t, a.Reset(ctx, "audit.logs.queue:m-1"))
	n, err = b.Incr(ctx, "audit.logs.queue:m-1")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
