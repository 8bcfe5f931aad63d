package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vidtube/backend/internal/apperrors"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = apperrors.NotFound("record")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = apperrors.Conflict("record already exists")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidTextRep      = "22P02"
)

// translate maps driver errors onto the repository sentinels and leaves
// everything else untouched.
func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrConflict
		case pgForeignKeyViolation, pgInvalidTextRep:
			return ErrNotFound
		}
	}
	return err
}
