// Package pg implements the auth and document store interfaces on
// PostgreSQL through database/sql with the pgx stdlib driver.
package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"docvault.org/internal/auth"
	"docvault.org/internal/docs"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store wraps a pooled connection.
type Store struct {
	db *sql.DB
}

var (
	_ auth.Store = (*Store)(nil)
	_ docs.Store = (*Store)(nil)
)

// Open connects with tuned pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing connection (tests use sqlmock through this).
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the raw handle for readiness probes and the migration runner.
func (s *Store) DB() *sql.DB { return s.db }

// mapWriteError converts constraint violations into domain sentinels. The
// unique-violation path is the authoritative duplicate guard: a pre-check
// racing another writer still ends in ErrConflict here.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return auth.ErrConflict
		case pgErrForeignKeyViolation:
			return auth.ErrNotFound
		}
	}
	return err
}

// mapDocWriteError is the document-table variant: a broken uploaded_by
// reference surfaces as a missing record.
func mapDocWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrForeignKeyViolation {
		return docs.ErrNotFound
	}
	return err
}
