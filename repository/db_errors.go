package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATEs and MySQL error numbers signalling a transaction the caller may retry.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	myDeadlock             = 1213
	myLockWaitTimeout      = 1205
)

// DatabaseError is a driver error reduced to its code and routine.
// Routine is only known for Postgres.
type DatabaseError struct {
	Code      string
	Routine   string
	Retryable bool
	Err       error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error %s (%s): %v", e.Code, e.Routine, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// VersionMismatchError reports an update whose expected version differs from the stored one.
type VersionMismatchError struct {
	Stored   int
	Supplied int
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("version mismatch: stored %d, supplied %d", e.Stored, e.Supplied)
}

// Behind reports whether the caller edited an outdated copy.
func (e *VersionMismatchError) Behind() bool { return e.Stored > e.Supplied }

// ClassifyError extracts the driver error carried by err. It returns nil for
// anything that did not come from Postgres or MySQL.
func ClassifyError(err error) *DatabaseError {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &DatabaseError{
			Code:      pgErr.Code,
			Routine:   pgErr.Routine,
			Retryable: pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected,
			Err:       err,
		}
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return &DatabaseError{
			Code:      strconv.Itoa(int(myErr.Number)),
			Retryable: myErr.Number == myDeadlock || myErr.Number == myLockWaitTimeout,
			Err:       err,
		}
	}
	return nil
}

// IsSerializationFailure reports whether err aborted because of a concurrent transaction.
func IsSerializationFailure(err error) bool {
	dbErr := ClassifyError(err)
	return dbErr != nil && dbErr.Retryable
}

// IsConnectionError reports whether err came from acquiring or reaching the database.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
