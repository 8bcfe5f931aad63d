// Package migrate applies the SQL schema migrations and seed files shipped
// with the service.
//
// Migrations are plain .sql files applied in lexical order, each inside its
// own serializable transaction together with its schema_migrations row.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	DefaultMaxAttempts = 3
	baseBackoff        = 100 * time.Millisecond
	maxBackoff         = 3 * time.Second
)

var retryableCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

// Conn is the part of a pgx connection the runner uses. Both *pgxpool.Conn
// and pgxmock connections satisfy it.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Status reports whether a migration file has been applied.
type Status struct {
	Name    string
	Applied bool
}

// Runner applies the migrations found in Files.
type Runner struct {
	Conn        Conn
	Files       fs.FS
	Logger      *slog.Logger
	MaxAttempts int

	// sleep waits between attempts; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner returns a runner reading migrations from files.
func NewRunner(conn Conn, files fs.FS, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Conn: conn, Files: files, Logger: logger, MaxAttempts: DefaultMaxAttempts, sleep: sleepContext}
}

// Files lists the .sql files at the root of fsys in apply order.
func Files(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Status lists every migration file with its applied state.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	names, err := Files(r.Files)
	if err != nil {
		return nil, err
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(names))
	for _, name := range names {
		_, ok := applied[name]
		statuses = append(statuses, Status{Name: name, Applied: ok})
	}
	return statuses, nil
}

// Up applies every pending migration and returns the names it applied.
func (r *Runner) Up(ctx context.Context) ([]string, error) {
	statuses, err := r.Status(ctx)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, s := range statuses {
		if s.Applied {
			continue
		}
		contents, err := fs.ReadFile(r.Files, s.Name)
		if err != nil {
			return done, fmt.Errorf("read migration %s: %w", s.Name, err)
		}
		if err := r.apply(ctx, s.Name, string(contents)); err != nil {
			return done, err
		}
		r.Logger.Info("migration applied", "name", s.Name)
		done = append(done, s.Name)
	}
	return done, nil
}

func (r *Runner) applied(ctx context.Context) (map[string]struct{}, error) {
	if _, err := r.Conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
                version TEXT PRIMARY KEY,
                applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	rows, err := r.Conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("fetch applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

func (r *Runner) apply(ctx context.Context, name, contents string) error {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := r.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if serr := sleep(ctx, Backoff(attempt-1)); serr != nil {
				return serr
			}
		}

		err = r.applyOnce(ctx, name, contents)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
		r.Logger.Warn("transient migration failure",
			"name", name, "attempt", attempt, "maxAttempts", attempts, "error", err)
	}
	return fmt.Errorf("apply migration %s: gave up after %d attempts: %w", name, attempts, err)
}

func (r *Runner) applyOnce(ctx context.Context, name, contents string) error {
	tx, err := r.Conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin migration transaction for %s: %w", name, err)
	}

	if _, err := tx.Exec(ctx, contents); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

// Seed executes a seed file. A bare name such as "dev" resolves to
// dev_seed.sql.
func Seed(ctx context.Context, conn Conn, files fs.FS, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("expected seed name (e.g. dev)")
	}
	if !strings.HasSuffix(name, ".sql") {
		name += "_seed.sql"
	}

	contents, err := fs.ReadFile(files, name)
	if err != nil {
		return "", fmt.Errorf("read seed %s: %w", name, err)
	}
	if _, err := conn.Exec(ctx, string(contents)); err != nil {
		return "", fmt.Errorf("apply seed %s: %w", name, err)
	}
	return name, nil
}

// Backoff is the wait before retry n (1-based), doubling from 100ms up to 3s.
func Backoff(n int) time.Duration {
	if n < 1 {
		return 0
	}
	d := baseBackoff
	for i := 1; i < n; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// Retryable reports whether err is a transient failure worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, pgx.ErrTxClosed) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := retryableCodes[pgErr.Code]
		return ok
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
