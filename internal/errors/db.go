package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// reKeyField extracts the column from "Key (username)=(alice) already exists.".
var reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)

// MapDBError maps driver errors to *AppError:
//
//	context deadline / cancel -> Timeout / Canceled
//	pgx.ErrNoRows             -> NotFound
//	unique violation          -> Conflict with Field
//	check / not-null          -> Validation with Field
//	other PgError             -> Internal
//
// Anything else, such as a dial failure, is returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &AppError{Code: ErrCodeTimeout, Message: "request timed out", Cause: err}
	case errors.Is(err, context.Canceled):
		return &AppError{Code: ErrCodeCanceled, Message: "request was canceled", Cause: err}
	case errors.Is(err, pgx.ErrNoRows):
		return &AppError{Code: ErrCodeNotFound, Message: "not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return &AppError{Code: ErrCodeConflict, Message: "value already exists", Field: uniqueField(pgErr), Cause: pgErr}
	case pgerrcode.CheckViolation:
		return &AppError{Code: ErrCodeValidation, Message: "invalid value", Field: checkField(pgErr), Cause: pgErr}
	case pgerrcode.NotNullViolation:
		return &AppError{Code: ErrCodeValidation, Message: "value is required", Field: pgErr.ColumnName, Cause: pgErr}
	default:
		return &AppError{Code: ErrCodeInternal, Message: "database error", Cause: pgErr}
	}
}

func uniqueField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		return m[1]
	}
	return fieldFromConstraint(pgErr.ConstraintName, pgErr.TableName, "_key")
}

func checkField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	return fieldFromConstraint(pgErr.ConstraintName, pgErr.TableName, "_check")
}

// fieldFromConstraint infers the column from a "<table>_<column>[_qualifier]<suffix>"
// constraint name, e.g. users_role_check -> role and users_username_lower_check -> username.
func fieldFromConstraint(constraint, table, suffix string) string {
	name, ok := strings.CutSuffix(constraint, suffix)
	if !ok {
		return ""
	}
	if table != "" {
		name, ok = strings.CutPrefix(name, table+"_")
	} else {
		_, name, ok = strings.Cut(name, "_")
	}
	if !ok || name == "" {
		return ""
	}
	column, _, _ := strings.Cut(name, "_")
	return column
}
