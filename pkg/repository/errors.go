package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the SQLSTATE PostgreSQL reports when an insert
// collides with an existing row key.
const uniqueViolation = "23505"

// MapError converts a query error into the caller's sentinels: a lookup
// that matched no row becomes notFound and a key collision becomes
// duplicate. Anything else passes through.
func MapError(err, notFound, duplicate error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return notFound
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return duplicate
	default:
		return err
	}
}
