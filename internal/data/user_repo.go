package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/target/gatekeeper/internal/clock"
	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	"github.com/target/gatekeeper/internal/data/pgxutil"
	apperrors "github.com/target/gatekeeper/internal/errors"
	"github.com/target/gatekeeper/internal/ports"
)

var _ ports.UserRepository = (*UserRepo)(nil)

// UserRepo provides database operations for user accounts.
type UserRepo struct {
	DB    *sql.DB
	clock ports.Clock
}

// NewUserRepo creates a UserRepo stamping rows with the wall clock.
func NewUserRepo(db *sql.DB) *UserRepo {
	return NewUserRepoWithClock(db, clock.Real{})
}

// NewUserRepoWithClock creates a UserRepo that stamps new rows with c.
func NewUserRepoWithClock(db *sql.DB, c ports.Clock) *UserRepo {
	if c == nil {
		c = clock.Real{}
	}
	return &UserRepo{DB: db, clock: c}
}

const (
	userGetByUsernameQuery = `
		SELECT id, username, password_hash, role, created_at, last_login_at
		FROM users
		WHERE username = $1`

	userGetByIDQuery = `
		SELECT id, username, password_hash, role, created_at, last_login_at
		FROM users
		WHERE id = $1`

	userListQuery = `
		SELECT id, username, password_hash, role, created_at, last_login_at
		FROM users
		ORDER BY id
		LIMIT $1 OFFSET $2`
)

// FindByIdentifier looks up an account by its normalized username.
// The lookup is bound to ctx; a cancelled request abandons the query.
func (r *UserRepo) FindByIdentifier(ctx context.Context, identifier string) (*domainauth.UserRecord, error) {
	return r.getOne(ctx, userGetByUsernameQuery, domainauth.NormalizeIdentifier(identifier))
}

// GetByID retrieves an account by ID.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domainauth.UserRecord, error) {
	return r.getOne(ctx, userGetByIDQuery, id)
}

// RecordLogin stamps the last successful login time.
func (r *UserRepo) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, at.UTC(), id)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return r.mapErr(err)
	}
	if affected == 0 {
		return domainauth.ErrUserNotFound
	}
	return nil
}

// Create inserts a new account.
func (r *UserRepo) Create(ctx context.Context, in domainauth.NewUser) (*domainauth.UserRecord, error) {
	if in.PasswordHash == "" {
		return nil, apperrors.ValidationField("password_hash", "password hash is required")
	}
	username := domainauth.NormalizeIdentifier(in.Username)
	if username == "" {
		return nil, apperrors.ValidationField("username", "username is required")
	}
	role := in.Role
	if role == "" {
		role = domainauth.RoleUser
	}
	if !role.Valid() {
		return nil, apperrors.ValidationField("role", "unknown role")
	}

	createdAt := r.clock.Now().UTC()
	var out domainauth.UserRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO users (username, password_hash, role, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id, username, password_hash, role, created_at, last_login_at`,
			username, in.PasswordHash, string(role), createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.UserRecord])
		return err
	})
	if err != nil {
		return nil, r.mapErr(err)
	}
	return &out, nil
}

// List retrieves accounts with pagination, ordered by id.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]*domainauth.UserRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	offset = max(offset, 0)

	var rowsOut []domainauth.UserRecord
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, userListQuery, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[domainauth.UserRecord])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", r.mapErr(err))
	}

	res := make([]*domainauth.UserRecord, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// UpdateRole changes an account's role.
func (r *UserRepo) UpdateRole(ctx context.Context, id int64, role domainauth.Role) (*domainauth.UserRecord, error) {
	if !role.Valid() {
		return nil, apperrors.ValidationField("role", "unknown role")
	}

	var out domainauth.UserRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE users SET role = $1 WHERE id = $2
			RETURNING id, username, password_hash, role, created_at, last_login_at`,
			string(role), id,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.UserRecord])
		return err
	})
	if err != nil {
		return nil, r.mapErr(err)
	}
	return &out, nil
}

// Delete removes an account by ID.
func (r *UserRepo) Delete(ctx context.Context, id int64) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", r.mapErr(err))
	}
	return rows > 0, nil
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*domainauth.UserRecord, error) {
	var u domainauth.UserRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, arg)
		if err != nil {
			return err
		}
		defer rows.Close()
		u, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.UserRecord])
		return err
	})
	if err != nil {
		return nil, r.mapErr(err)
	}
	return &u, nil
}

// mapErr translates driver errors into the auth error taxonomy. Anything not
// recognised as a caller mistake is reported as a retryable store failure.
func (r *UserRepo) mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domainauth.ErrUserNotFound
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var appErr *apperrors.AppError
	if errors.As(apperrors.MapDBError(err), &appErr) {
		switch appErr.Code {
		case apperrors.ErrCodeConflict:
			return fmt.Errorf("%w: %w", domainauth.ErrIdentifierTaken, err)
		case apperrors.ErrCodeValidation:
			return appErr
		}
	}
	return fmt.Errorf("%w: %w", domainauth.ErrStoreUnavailable, err)
}
