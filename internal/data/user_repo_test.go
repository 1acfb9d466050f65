package data

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/gatekeeper/internal/clock"
	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	apperrors "github.com/target/gatekeeper/internal/errors"
	"github.com/target/gatekeeper/internal/testutil"
)

func uniqueUsername(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}

func TestUserRepo_Create_Find_List_UpdateRole_Delete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		fixed := clock.NewFixed(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
		repo := NewUserRepoWithClock(db, fixed)

		name := uniqueUsername("alice")
		u, err := repo.Create(ctx, domainauth.NewUser{
			Username:     "  " + name + " ",
			PasswordHash: "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$a2V5",
		})
		require.NoError(t, err)
		require.NotZero(t, u.ID)
		assert.Equal(t, name, u.Username)
		assert.Equal(t, domainauth.RoleUser, u.Role)
		assert.Nil(t, u.LastLoginAt)
		assert.True(t, u.CreatedAt.Equal(fixed.Now()))

		// lookup normalizes the identifier
		found, err := repo.FindByIdentifier(ctx, "  "+name)
		require.NoError(t, err)
		assert.Equal(t, u.ID, found.ID)
		assert.Equal(t, u.PasswordHash, found.PasswordHash)

		byID, err := repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, name, byID.Username)

		loginAt := fixed.Now().Add(time.Hour)
		require.NoError(t, repo.RecordLogin(ctx, u.ID, loginAt))
		byID, err = repo.GetByID(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, byID.LastLoginAt)
		assert.True(t, byID.LastLoginAt.Equal(loginAt))

		lst, err := repo.List(ctx, 10, 0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(lst), 1)

		updated, err := repo.UpdateRole(ctx, u.ID, domainauth.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, domainauth.RoleAdmin, updated.Role)

		deleted, err := repo.Delete(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = repo.GetByID(ctx, u.ID)
		assert.ErrorIs(t, err, domainauth.ErrUserNotFound)

		deleted, err = repo.Delete(ctx, u.ID)
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}

func TestUserRepo_DuplicateUsername(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewUserRepo(db)
		name := uniqueUsername("dup")

		_, err := repo.Create(ctx, domainauth.NewUser{Username: name, PasswordHash: "h"})
		require.NoError(t, err)

		_, err = repo.Create(ctx, domainauth.NewUser{Username: name, PasswordHash: "h"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domainauth.ErrIdentifierTaken)
	})
}

func TestUserRepo_NotFound(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewUserRepo(db)

		_, err := repo.FindByIdentifier(ctx, uniqueUsername("ghost"))
		assert.ErrorIs(t, err, domainauth.ErrUserNotFound)

		err = repo.RecordLogin(ctx, -1, time.Now())
		assert.ErrorIs(t, err, domainauth.ErrUserNotFound)

		_, err = repo.UpdateRole(ctx, -1, domainauth.RoleAdmin)
		assert.ErrorIs(t, err, domainauth.ErrUserNotFound)
	})
}

func TestUserRepo_CancelledLookup(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewUserRepo(db).FindByIdentifier(ctx, "anyone@example.com")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, domainauth.ErrUserNotFound)
	})
}

func TestUserRepo_CreateValidation(t *testing.T) {
	repo := NewUserRepo(nil)
	ctx := context.Background()

	_, err := repo.Create(ctx, domainauth.NewUser{Username: "x@example.com"})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "password_hash", appErr.Field)

	_, err = repo.Create(ctx, domainauth.NewUser{Username: "  ", PasswordHash: "h"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "username", appErr.Field)

	_, err = repo.Create(ctx, domainauth.NewUser{Username: "x@example.com", PasswordHash: "h", Role: "root"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "role", appErr.Field)

	_, err = repo.UpdateRole(ctx, 1, "root")
	require.ErrorAs(t, err, &appErr)
}
