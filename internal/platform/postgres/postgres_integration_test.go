//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cityfix/internal/platform/postgres"
	"cityfix/pkg/testutil/containers"
)

func TestRunInTx(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	ctx := context.Background()
	_, err := pg.DB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS tx_probe (v INT)`)
	require.NoError(t, err)
	require.NoError(t, pg.TruncateTables(ctx, "tx_probe"))

	runner := postgres.NewTxRunner(pg.DB)
	insert := func(ctx context.Context) error {
		_, err := postgres.Conn(ctx, pg.DB).ExecContext(ctx, `INSERT INTO tx_probe (v) VALUES (1)`)
		return err
	}

	require.NoError(t, runner.RunInTx(ctx, insert))

	boom := errors.New("boom")
	err = runner.RunInTx(ctx, func(ctx context.Context) error {
		require.NoError(t, insert(ctx))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, pg.DB.QueryRowContext(ctx, `SELECT count(*) FROM tx_probe`).Scan(&n))
	assert.Equal(t, 1, n)
}
