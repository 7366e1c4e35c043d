package errors

// Postgres error classification for the collector's kv and lead tables

import (
	"context"
	stderrs "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the collector tables can produce
const (
	pgUniqueViolation     = "23505"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgStringTooLong       = "22001"
	pgBadTextValue        = "22P02"
	pgSerializationFailed = "40001"
	pgDeadlock            = "40P01"
	pgLockNotAvailable    = "55P03"
	pgReadOnlyTx          = "25006"
	pgCannotConnectNow    = "57P03"
	pgUndefinedTable      = "42P01"
)

// ExtractPgError returns the *pgconn.PgError at the root of err
func ExtractPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if stderrs.As(Root(err), &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsSQLState reports whether err is a Postgres error with code
func IsSQLState(err error, code string) bool {
	pgErr, ok := ExtractPgError(err)
	return ok && pgErr.Code == code
}

// IsDuplicateKey reports a unique violation
func IsDuplicateKey(err error) bool { return IsSQLState(err, pgUniqueViolation) }

// IsUndefinedTable reports a missing table; the collector schema was not applied
func IsUndefinedTable(err error) bool { return IsSQLState(err, pgUndefinedTable) }

// DBErrorCode maps a Postgres error to an ErrorCode; ok is false for non-pg errors
func DBErrorCode(err error) (ErrorCode, bool) {
	pgErr, ok := ExtractPgError(err)
	if !ok {
		return ErrorCodeUnknown, false
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return ErrorCodeDuplicateKey, true
	case pgNotNullViolation, pgCheckViolation:
		return ErrorCodeValidation, true
	case pgStringTooLong, pgBadTextValue:
		return ErrorCodeInvalidArgument, true
	case pgReadOnlyTx, pgCannotConnectNow:
		return ErrorCodeUnavailable, true
	}
	return ErrorCodeDB, true
}

// FromPostgres wraps err with its mapped code; nil stays nil
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	code, ok := DBErrorCode(err)
	if !ok {
		code = ErrorCodeDB
	}
	e := &Error{code: code, msg: msg, orig: err}
	if pgErr, ok := ExtractPgError(err); ok {
		e.field = strings.TrimSpace(pgErr.ColumnName)
	}
	return e
}

// IsRetryable reports contention a caller may retry; cancellations never are
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	root := Root(err)
	if pgErr, ok := ExtractPgError(root); ok {
		switch pgErr.Code {
		case pgSerializationFailed, pgDeadlock, pgLockNotAvailable:
			return true
		}
		return false
	}
	s := strings.ToLower(root.Error())
	for _, marker := range []string{
		"commit unexpectedly resulted in rollback",
		"deadlock detected",
		"could not serialize access",
		"canceling statement due to lock timeout",
	} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
