package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Error classes. Every error returned by a service wraps exactly one of these so
// adapters can map it with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

var (
	ErrSKUNotFound       = fmt.Errorf("sku %w", ErrNotFound)
	ErrInventoryNotFound = fmt.Errorf("inventory record %w", ErrNotFound)
	ErrBatchNotFound     = fmt.Errorf("batch %w", ErrNotFound)
	ErrLocationNotFound  = fmt.Errorf("location %w", ErrNotFound)
	ErrLotNotFound       = fmt.Errorf("lot %w", ErrNotFound)

	ErrInvalidAction     = fmt.Errorf("invalid action: %w", ErrValidation)
	ErrYieldNotRecorded  = fmt.Errorf("no yield recorded: %w", ErrValidation)
	ErrInvalidTransition = fmt.Errorf("invalid lifecycle transition: %w", ErrConflict)
	ErrInsufficientStock = fmt.Errorf("insufficient stock: %w", ErrConflict)
	ErrDuplicate         = fmt.Errorf("duplicate: %w", ErrConflict)
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
