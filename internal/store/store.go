/**
 * @description
 * This file defines the Postgres store shared by all services. The store is a
 * single repository over a pgxpool connection pool, split across files by
 * area (users, events, registrations, payments, ...). Services consume it
 * through the narrow interfaces they declare for themselves, which keeps the
 * store swappable in tests.
 */
package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the concrete repository backed by a pgx connection pool.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres creates the repository. The pool is owned by the caller.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// uniqueViolation reports whether err is a Postgres unique-constraint
// violation, optionally on a specific constraint name.
func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
