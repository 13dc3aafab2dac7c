package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// sqlStateUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const sqlStateUniqueViolation = "23505"

// UniqueViolation reports whether err wraps a unique constraint violation,
// and if so which constraint, such as lan_users_address_key.
func UniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != sqlStateUniqueViolation {
		return "", false
	}
	return pgErr.ConstraintName, true
}
