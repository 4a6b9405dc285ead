package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cityfix/internal/platform/postgres"
	"cityfix/internal/report/models"
	id "cityfix/pkg/domain"
	"cityfix/pkg/platform/sentinel"
)

const reportColumns = `id, user_id, title, description, status, category, priority, latitude, longitude, created_at, updated_at`

// PostgresStore persists reports in PostgreSQL. Writes join the transaction
// carried by ctx, if any.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Report) error {
	query := `
		INSERT INTO reports (user_id, title, description, status, category, priority, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx, query,
		int64(r.UserID), r.Title, r.Description, r.Status, r.Category, r.Priority, r.Latitude, r.Longitude,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	row := postgres.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = $1`, int64(reportID))
	r, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find report by id: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Report, error) {
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []*models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, r *models.Report) error {
	query := `
		UPDATE reports
		SET title = $2, description = $3, status = $4, category = $5, priority = $6,
			latitude = $7, longitude = $8, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx, query,
		int64(r.ID), r.Title, r.Description, r.Status, r.Category, r.Priority, r.Latitude, r.Longitude,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("update report: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, reportID id.ReportID) error {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, int64(reportID))
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*models.Report, error) {
	var (
		r         models.Report
		reportID  int64
		userID    int64
		lat, long sql.NullFloat64
	)
	if err := row.Scan(&reportID, &userID, &r.Title, &r.Description, &r.Status, &r.Category, &r.Priority,
		&lat, &long, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.ID = id.ReportID(reportID)
	r.UserID = id.UserID(userID)
	if lat.Valid {
		r.Latitude = &lat.Float64
	}
	if long.Valid {
		r.Longitude = &long.Float64
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}
