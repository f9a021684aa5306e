package database

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate key value")

	// ErrForeignKey is returned when a foreign key constraint is violated.
	ErrForeignKey = errors.New("foreign key violation")

	// ErrConflict is returned when a transaction lost a serialization race or deadlocked.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrCheck is returned when a check constraint is violated.
	ErrCheck = errors.New("check constraint violation")

	// ErrOutOfRange is returned when a value does not fit its column.
	ErrOutOfRange = errors.New("numeric value out of range")
)

// postgres SQLSTATE codes
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeNumericOutOfRange    = "22003"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// StoreError carries the classified sentinel alongside the driver error.
type StoreError struct {
	Kind       error
	Constraint string
	Err        error
}

func (e *StoreError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("%v (%s): %v", e.Kind, e.Constraint, e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *StoreError) Is(target error) bool {
	return target == e.Kind
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Classify maps driver errors onto the package sentinels. Unknown errors pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var se *StoreError
	if errors.As(err, &se) {
		return err
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return &StoreError{Kind: ErrNotFound, Err: err}
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeUniqueViolation:
		return &StoreError{Kind: ErrDuplicate, Constraint: pgErr.ConstraintName, Err: err}
	case codeForeignKeyViolation:
		return &StoreError{Kind: ErrForeignKey, Constraint: pgErr.ConstraintName, Err: err}
	case codeCheckViolation:
		return &StoreError{Kind: ErrCheck, Constraint: pgErr.ConstraintName, Err: err}
	case codeNumericOutOfRange:
		return &StoreError{Kind: ErrOutOfRange, Err: err}
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return &StoreError{Kind: ErrConflict, Err: err}
	default:
		return err
	}
}

// ConstraintOf returns the violated constraint name for a classified error, or "".
func ConstraintOf(err error) string {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Constraint
	}
	return ""
}
