package repos

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate is returned by the in-memory store where Postgres would raise
// a unique violation, so callers can classify both the same way.
var ErrDuplicate = errors.New("duplicate key")

// IsDuplicate reports whether err is a uniqueness conflict, either the
// in-memory sentinel or a Postgres 23505.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicate) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
