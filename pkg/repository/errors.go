package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE unique_violation.
const uniqueViolation = "23505"

// MapError converts store errors into a package's sentinels: a missing row
// becomes notFound and a unique violation becomes duplicate, naming the
// constraint that fired. errors.Is matches the sentinel either way. Anything
// else is returned as is.
func MapError(err, notFound, duplicate error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return notFound
	}

	if pgErr, ok := uniqueViolationOf(err); ok {
		if pgErr.ConstraintName == "" {
			return duplicate
		}
		return fmt.Errorf("%w (%s)", duplicate, pgErr.ConstraintName)
	}
	return err
}

// IsUniqueViolation reports whether err, or anything it wraps, is a
// PostgreSQL unique violation.
func IsUniqueViolation(err error) bool {
	_, ok := uniqueViolationOf(err)
	return ok
}

func uniqueViolationOf(err error) (*pgconn.PgError, bool) {
	pgErr, ok := errors.AsType[*pgconn.PgError](err)
	if !ok || pgErr.Code != uniqueViolation {
		return nil, false
	}
	return pgErr, true
}
