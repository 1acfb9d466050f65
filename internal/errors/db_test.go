package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError(t *testing.T) {
	dial := errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

	tests := []struct {
		name      string
		err       error
		wantCode  ErrorCode
		wantField string
	}{
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout, ""},
		{"canceled", fmt.Errorf("query: %w", context.Canceled), ErrCodeCanceled, ""},
		{"no rows", pgx.ErrNoRows, ErrCodeNotFound, ""},
		{
			"unique by column metadata",
			&pgconn.PgError{Code: pgerrcode.UniqueViolation, ColumnName: "username"},
			ErrCodeConflict, "username",
		},
		{
			"unique by detail",
			&pgconn.PgError{Code: pgerrcode.UniqueViolation, Detail: "Key (username)=(alice@example.com) already exists."},
			ErrCodeConflict, "username",
		},
		{
			"unique by constraint",
			&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_username_key", TableName: "users"},
			ErrCodeConflict, "username",
		},
		{
			"role check",
			&pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "users_role_check", TableName: "users"},
			ErrCodeValidation, "role",
		},
		{
			"username lower check without table",
			&pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "users_username_lower_check"},
			ErrCodeValidation, "username",
		},
		{
			"not null",
			&pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "password_hash"},
			ErrCodeValidation, "password_hash",
		},
		{
			"unmapped pg error",
			&pgconn.PgError{Code: pgerrcode.DeadlockDetected},
			ErrCodeInternal, "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(fmt.Errorf("exec: %w", tt.err))
			if got := GetCode(err); got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
			if got := GetField(err); got != tt.wantField {
				t.Errorf("field = %q, want %q", got, tt.wantField)
			}
			if !errors.Is(err, tt.err) {
				t.Error("mapped error should wrap the original")
			}
		})
	}

	if MapDBError(nil) != nil {
		t.Error("MapDBError(nil) should be nil")
	}
	if got := MapDBError(dial); got != dial {
		t.Errorf("unrecognised errors should pass through, got %v", got)
	}
}

func TestFieldFromConstraint(t *testing.T) {
	tests := []struct {
		constraint, table, suffix, want string
	}{
		{"users_username_key", "users", "_key", "username"},
		{"users_role_check", "", "_check", "role"},
		{"users_pkey", "users", "_key", ""},
		{"other_role_check", "users", "_check", ""},
		{"", "users", "_key", ""},
	}
	for _, tt := range tests {
		if got := fieldFromConstraint(tt.constraint, tt.table, tt.suffix); got != tt.want {
			t.Errorf("fieldFromConstraint(%q, %q) = %q, want %q", tt.constraint, tt.table, got, tt.want)
		}
	}
}
