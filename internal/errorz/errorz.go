// Package errorz contains error values and helpers shared by the stores,
// services and the web layer.
package errorz

import (
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate signals a unique constraint was violated.
	ErrDuplicate          = errors.New("duplicate")
	ErrConstraintViolated = errors.New("constraint violated")
)

// MapDBErr maps sqlite errors to errorz errors.
// If err is nil, MapDBErr returns nil.
func MapDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	sErr := sqlite3.Error{}
	if errors.As(err, &sErr) && sErr.Code == sqlite3.ErrConstraint {
		switch sErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return ErrDuplicate
		default:
			return ErrConstraintViolated
		}
	}

	return err
}
