package store

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate a uniqueness constraint.
var ErrConflict = errors.New("conflict")

const (
	pqUniqueViolation   = "23505"
	pqInvalidTextRepr   = "22P02"
	pqForeignKeyViolate = "23503"
)

// mapError translates driver errors into store sentinels.
// Malformed ids cannot match a row, so they read as ErrNotFound.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return ErrConflict
		case pqInvalidTextRepr, pqForeignKeyViolate:
			return ErrNotFound
		}
	}
	return err
}

func rowsAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
