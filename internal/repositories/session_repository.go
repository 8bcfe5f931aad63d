package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/db"
)

// PostgresSessionStore keeps each user's refresh credential in the
// users.refresh_token column. Only that column is ever written.
type PostgresSessionStore struct {
	pool db.Pool
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// Get returns the stored refresh credential, or "" when the user is logged out.
func (s *PostgresSessionStore) Get(ctx context.Context, userID string) (string, error) {
	var token sql.NullString
	err := s.pool.QueryRow(ctx, `SELECT refresh_token FROM users WHERE id = $1`, userID).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || translate(err) == ErrNotFound {
			return "", auth.ErrUserNotFound
		}
		return "", fmt.Errorf("select refresh token: %w", err)
	}
	return token.String, nil
}

// Set overwrites the stored refresh credential.
func (s *PostgresSessionStore) Set(ctx context.Context, userID, refreshToken string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET refresh_token = $2 WHERE id = $1`, userID, refreshToken)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

// Swap replaces expected with next in a single conditional update. It reports
// false when the stored value no longer equals expected.
func (s *PostgresSessionStore) Swap(ctx context.Context, userID, expected, next string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
        UPDATE users
        SET refresh_token = $3
        WHERE id = $1 AND refresh_token = $2
    `, userID, expected, next)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Clear removes the stored refresh credential.
func (s *PostgresSessionStore) Clear(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `UPDATE users SET refresh_token = NULL WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

var _ auth.SessionStore = (*PostgresSessionStore)(nil)
