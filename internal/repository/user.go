package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/atinyakov/taskboard/internal/apperr"
	"github.com/atinyakov/taskboard/internal/models"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// PostgresUserRepository implements user persistence against a
// PostgreSQL database.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository with the
// given database connection.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// Create inserts a new user. Duplicate login or email yields a
// Conflict error.
func (r *PostgresUserRepository) Create(ctx context.Context, login, email, passwordHash string, now time.Time) (*models.User, error) {
	user := models.User{
		Login:        login,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedDate:  now,
		LastLogin:    now,
	}

	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO users (login, email, password_hash, created_date, last_login)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING user_id
	`, login, email, passwordHash, now, now).Scan(&user.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, apperr.Conflict("login or email already registered")
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &user, nil
}

// GetByLogin fetches a user by login. Absent users yield NotFound.
func (r *PostgresUserRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	err := r.DB.QueryRowContext(ctx, `
		SELECT user_id, login, email, password_hash, created_date, last_login
		  FROM users WHERE login = $1
	`, login).Scan(&user.ID, &user.Login, &user.Email, &user.PasswordHash, &user.CreatedDate, &user.LastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user %q not found", login)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// UpdateLastLogin bumps the last_login timestamp after a successful login.
func (r *PostgresUserRepository) UpdateLastLogin(ctx context.Context, userID int64, now time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET last_login = $1 WHERE user_id = $2`, now, userID)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}
