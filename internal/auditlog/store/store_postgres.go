package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"cityfix/internal/auditlog/models"
	"cityfix/internal/platform/postgres"
	id "cityfix/pkg/domain"
)

// PostgresStore appends audit records to the audit_logs table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts r. Redelivered envelopes produce another row.
func (s *PostgresStore) Append(ctx context.Context, r *models.Record) error {
	query := `
		INSERT INTO audit_logs (event_type, user_id, username, entity_type, entity_id, action, details, ip_address, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx, query,
		r.EventType,
		nullInt(int64(r.UserID)),
		r.Username,
		r.EntityType,
		nullInt(r.EntityID),
		r.Action,
		r.Details,
		r.IPAddress,
		r.Timestamp,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, f models.Filter) ([]models.Record, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, strings.Replace(clause, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if !f.UserID.IsZero() {
		add("user_id = ?", int64(f.UserID))
	}
	if f.EventType != "" {
		add("event_type = ?", f.EventType)
	}
	if !f.From.IsZero() {
		add("timestamp >= ?", f.From)
	}
	if !f.To.IsZero() {
		add("timestamp <= ?", f.To)
	}

	query := `SELECT id, event_type, user_id, username, entity_type, entity_id, action, details, ip_address, timestamp FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var (
			r        models.Record
			userID   sql.NullInt64
			entityID sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.EventType, &userID, &r.Username, &r.EntityType, &entityID,
			&r.Action, &r.Details, &r.IPAddress, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		r.UserID = id.UserID(userID.Int64)
		r.EntityID = entityID.Int64
		r.Timestamp = r.Timestamp.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	return out, nil
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
