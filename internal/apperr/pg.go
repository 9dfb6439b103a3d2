package apperr

// Postgres helpers for recognising constraint violations in pgx errors

import (
	stderrs "errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgErrUniqueViolation = "23505"

// ExtractPgError returns (*pgconn.PgError, true) if err wraps a PgError
func ExtractPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if stderrs.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsDuplicateKey reports whether err is a unique constraint violation
func IsDuplicateKey(err error) bool {
	pgErr, ok := ExtractPgError(err)
	return ok && pgErr.Code == pgErrUniqueViolation
}

// FromPostgres classifies a pgx error: unique violations become CodeCollision,
// everything else CodeUpstream. Returns nil for nil.
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	if IsDuplicateKey(err) {
		return Wrap(err, CodeCollision, msg)
	}
	return Wrap(err, CodeUpstream, msg)
}
