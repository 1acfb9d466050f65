package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/gatekeeper/internal/domain/auth"
)

func TestMemoryUserStore_FindNormalizesIdentifier(t *testing.T) {
	store := NewMemoryUserStore()
	id := store.Seed("Alice@Example.com", "stub$pw", domainauth.RoleAdmin)

	rec, err := store.FindByIdentifier(context.Background(), "  ALICE@example.COM ")
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "alice@example.com", rec.Username)

	_, err = store.FindByIdentifier(context.Background(), "bob@example.com")
	assert.ErrorIs(t, err, domainauth.ErrUserNotFound)
}

func TestMemoryUserStore_CreateRejectsDuplicates(t *testing.T) {
	store := NewMemoryUserStore()
	store.Seed("alice", "stub$pw", "")

	_, err := store.Create(context.Background(), domainauth.NewUser{Username: "ALICE", PasswordHash: "stub$x"})
	assert.ErrorIs(t, err, domainauth.ErrIdentifierTaken)
}

func TestMemoryUserStore_FuncOverrides(t *testing.T) {
	boom := errors.New("boom")
	store := NewMemoryUserStore()
	store.FindFunc = func(context.Context, string) (*domainauth.UserRecord, error) { return nil, boom }
	store.RecordLoginFunc = func(context.Context, int64, time.Time) error { return boom }

	_, err := store.FindByIdentifier(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, store.RecordLogin(context.Background(), 1, time.Now()), boom)
}

func TestMemoryUserStore_ListPaginates(t *testing.T) {
	store := NewMemoryUserStore()
	for _, name := range []string{"a", "b", "c"} {
		store.Seed(name, "stub$pw", domainauth.RoleUser)
	}

	page, err := store.List(context.Background(), 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].Username)
	assert.Equal(t, "c", page[1].Username)

	page, err = store.List(context.Background(), 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestStubHasher(t *testing.T) {
	h := &StubHasher{}
	ctx := context.Background()

	enc, err := h.Hash(ctx, "secret")
	require.NoError(t, err)

	ok, err := h.Verify(ctx, "secret", enc)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(ctx, "secret", h.DummyHash())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Verify(ctx, "secret", "garbage")
	assert.ErrorIs(t, err, domainauth.ErrCorruptCredentialStore)
	assert.Equal(t, int64(3), h.VerifyCalls())
}

func TestMemoryRevocations(t *testing.T) {
	r := NewMemoryRevocations()
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}
