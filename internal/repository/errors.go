package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a unique constraint
	ErrDuplicate = errors.New("duplicate")
	// ErrUndefinedColumn is returned when the deployed schema lacks an optional column
	ErrUndefinedColumn = errors.New("undefined column")
	// ErrConflict is returned when a conditional update matched no row
	ErrConflict = errors.New("conflict")
)

const (
	codeUniqueViolation = "23505"
	codeUndefinedColumn = "42703"
)

// classify maps driver errors onto the package sentinels
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return ErrDuplicate
		case codeUndefinedColumn:
			return ErrUndefinedColumn
		}
	}
	return err
}

// wrap keeps the driver error while exposing the sentinel to errors.Is
func wrap(err error) error {
	c := classify(err)
	if c == err {
		return err
	}
	return errors.Join(c, err)
}
