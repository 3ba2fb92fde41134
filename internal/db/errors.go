package db

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrConflict reports transaction contention; the unit of work may succeed if retried.
	ErrConflict = errors.New("concurrency conflict")
	// ErrUnavailable reports that the store could not be reached at all.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrOutOfRange reports a value that does not fit its column.
	ErrOutOfRange = errors.New("value out of range")
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeNumericOutOfRange    = "22003"
	classConnectionException = "08"
)

// Classify maps driver errors onto ErrConflict, ErrUnavailable and
// ErrOutOfRange and leaves everything else untouched.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrConflict) || errors.Is(err, ErrUnavailable) || errors.Is(err, ErrOutOfRange) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeSerializationFailure, pgErr.Code == codeDeadlockDetected:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case strings.HasPrefix(pgErr.Code, classConnectionException):
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		case pgErr.Code == codeNumericOutOfRange:
			return fmt.Errorf("%w: %w", ErrOutOfRange, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if strings.Contains(err.Error(), "closed pool") {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

// IsUniqueViolation reports whether err is a unique violation on the named constraint.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
