// Package tx carries the open *sql.Tx of a postgres.TxRunner through a
// request context so the report, user and audit-log stores join it.
package tx

import (
	"context"
	"database/sql"
)

type key struct{}

// WithTx returns ctx carrying tx. A nil tx leaves ctx unchanged so stores
// fall back to the pool.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, key{}, tx)
}

// From returns the transaction stored by WithTx.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(key{}).(*sql.Tx)
	return tx, ok && tx != nil
}

// Active reports whether ctx already runs inside a transaction. Nested
// RunInTx calls use it to join instead of opening a second one.
func Active(ctx context.Context) bool {
	_, ok := From(ctx)
	return ok
}
