package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByLogin(ctx context.Context, identifier string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	FindPublicByID(ctx context.Context, id string) (models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	UpdateAccount(ctx context.Context, id, fullName, email string, updatedAt time.Time) (models.User, error)
	UpdateAvatar(ctx context.Context, id, avatar string, updatedAt time.Time) (models.User, error)
	UpdateCoverImage(ctx context.Context, id, coverImage string, updatedAt time.Time) (models.User, error)
}

const publicUserColumns = `id, username, email, full_name, avatar, COALESCE(cover_image, ''), created_at, updated_at`

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record. Username and email must already be normalized.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO users (id, username, email, full_name, password_hash, avatar, cover_image, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
    `, user.ID, user.Username, user.Email, user.FullName, user.Password, user.Avatar, user.CoverImage, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if translated := translate(err); translated == ErrConflict {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByLogin fetches a user, including the password hash, by username or email.
func (r *PostgresUserRepository) FindByLogin(ctx context.Context, identifier string) (models.User, error) {
	row := r.pool.QueryRow(ctx, `
        SELECT id, username, email, full_name, password_hash, avatar, COALESCE(cover_image, ''), created_at, updated_at
        FROM users
        WHERE username = $1 OR email = $1
        LIMIT 1
    `, identifier)

	return scanPrivateUser(row, "select user by login")
}

// FindByID fetches a user including the password hash.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	row := r.pool.QueryRow(ctx, `
        SELECT id, username, email, full_name, password_hash, avatar, COALESCE(cover_image, ''), created_at, updated_at
        FROM users
        WHERE id = $1
    `, id)

	return scanPrivateUser(row, "select user by id")
}

// FindPublicByID fetches a user without the password hash or refresh credential.
func (r *PostgresUserRepository) FindPublicByID(ctx context.Context, id string) (models.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+publicUserColumns+` FROM users WHERE id = $1`, id)
	return scanPublicUser(row, "select public user")
}

// ExistsByUsernameOrEmail reports whether either value is already taken.
func (r *PostgresUserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)
    `, username, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check existing user: %w", err)
	}
	return exists, nil
}

// UpdatePassword replaces the stored password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE users
        SET password_hash = $2, updated_at = $3
        WHERE id = $1
    `, id, passwordHash, updatedAt)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateAccount changes the display name and email of a user.
func (r *PostgresUserRepository) UpdateAccount(ctx context.Context, id, fullName, email string, updatedAt time.Time) (models.User, error) {
	row := r.pool.QueryRow(ctx, `
        UPDATE users
        SET full_name = $2, email = $3, updated_at = $4
        WHERE id = $1
        RETURNING `+publicUserColumns, id, fullName, email, updatedAt)

	return scanPublicUser(row, "update account")
}

// UpdateAvatar stores a new avatar location.
func (r *PostgresUserRepository) UpdateAvatar(ctx context.Context, id, avatar string, updatedAt time.Time) (models.User, error) {
	row := r.pool.QueryRow(ctx, `
        UPDATE users
        SET avatar = $2, updated_at = $3
        WHERE id = $1
        RETURNING `+publicUserColumns, id, avatar, updatedAt)

	return scanPublicUser(row, "update avatar")
}

// UpdateCoverImage stores a new cover image location.
func (r *PostgresUserRepository) UpdateCoverImage(ctx context.Context, id, coverImage string, updatedAt time.Time) (models.User, error) {
	row := r.pool.QueryRow(ctx, `
        UPDATE users
        SET cover_image = $2, updated_at = $3
        WHERE id = $1
        RETURNING `+publicUserColumns, id, coverImage, updatedAt)

	return scanPublicUser(row, "update cover image")
}

func scanPrivateUser(row pgx.Row, op string) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.Password, &user.Avatar, &user.CoverImage, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if translated := translate(err); translated != err {
			return models.User{}, translated
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func scanPublicUser(row pgx.Row, op string) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.Avatar, &user.CoverImage, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if translated := translate(err); translated != err {
			return models.User{}, translated
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ auth.UserStore = (*PostgresUserRepository)(nil)
