package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cityfix/internal/platform/postgres"
	"cityfix/internal/user/models"
	id "cityfix/pkg/domain"
	"cityfix/pkg/platform/sentinel"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, phone, reports_count, created_at, updated_at`

// PostgresStore persists users in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, first_name, last_name, phone)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, reports_count, created_at, updated_at
	`
	var userID int64
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx, query,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone,
	).Scan(&userID, &u.ReportsCount, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return fmt.Errorf("insert user: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = id.UserID(userID)
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, int64(userID))
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (s *PostgresStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func (s *PostgresStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))`, email)
}

// Update saves profile fields. The password hash and reports_count are left
// untouched.
func (s *PostgresStore) Update(ctx context.Context, u *models.User) error {
	query := `
		UPDATE users
		SET email = $2, first_name = $3, last_name = $4, phone = $5, updated_at = now()
		WHERE id = $1
		RETURNING reports_count, updated_at
	`
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx, query,
		int64(u.ID), u.Email, u.FirstName, u.LastName, u.Phone,
	).Scan(&u.ReportsCount, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if postgres.IsUniqueViolation(err, "users_email_key") {
			return fmt.Errorf("update user: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// IncrementReportsCount adds one in a single statement so concurrent
// consumers never lose an increment.
func (s *PostgresStore) IncrementReportsCount(ctx context.Context, userID id.UserID) (int, error) {
	var count int
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx,
		`UPDATE users SET reports_count = reports_count + 1 WHERE id = $1 RETURNING reports_count`,
		int64(userID),
	).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("increment reports count: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var (
		u      models.User
		userID int64
	)
	err := postgres.Conn(ctx, s.db).QueryRowContext(ctx, query, arg).Scan(
		&userID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone,
		&u.ReportsCount, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.ID = id.UserID(userID)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func (s *PostgresStore) exists(ctx context.Context, query string, arg any) (bool, error) {
	var ok bool
	if err := postgres.Conn(ctx, s.db).QueryRowContext(ctx, query, arg).Scan(&ok); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return ok, nil
}
