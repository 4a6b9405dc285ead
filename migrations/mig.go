// Package migrations embeds the SQL schema of each service and applies it
// with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

//go:embed report/*.sql user/*.sql auditlog/*.sql
var files embed.FS

// Schema sets, one per service.
const (
	Report   = "report"
	User     = "user"
	AuditLog = "auditlog"
)

// All lists every schema set in the order standalone mode applies them.
var All = []string{User, Report, AuditLog}

// Up applies the pending migrations of one schema set. Each set keeps its
// own version table so services can share a database.
func Up(ctx context.Context, db *sql.DB, set string, logger *slog.Logger) error {
	p, err := provider(db, set)
	if err != nil {
		return err
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", set, err)
	}
	for _, r := range results {
		logger.InfoContext(ctx, "migration applied", "set", set, "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// Version reports the current schema version of a set.
func Version(ctx context.Context, db *sql.DB, set string) (int64, error) {
	p, err := provider(db, set)
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}

func provider(db *sql.DB, set string) (*goose.Provider, error) {
	sub, err := fs.Sub(files, set)
	if err != nil {
		return nil, fmt.Errorf("migration set %q: %w", set, err)
	}
	if entries, _ := fs.ReadDir(sub, "."); len(entries) == 0 {
		return nil, fmt.Errorf("unknown migration set %q", set)
	}
	store, err := database.NewStore(database.DialectPostgres, "goose_"+set+"_version")
	if err != nil {
		return nil, err
	}
	return goose.NewProvider("", db, sub, goose.WithStore(store))
}
