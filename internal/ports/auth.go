package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/target/gatekeeper/internal/domain/auth"
)

// UserStore is the read path used at login.
type UserStore interface {
	// FindByIdentifier returns domainauth.ErrUserNotFound when no account matches.
	FindByIdentifier(ctx context.Context, identifier string) (*domainauth.UserRecord, error)
	RecordLogin(ctx context.Context, id int64, at time.Time) error
}

// UserRepository adds account management on top of UserStore.
type UserRepository interface {
	UserStore
	Create(ctx context.Context, in domainauth.NewUser) (*domainauth.UserRecord, error)
	GetByID(ctx context.Context, id int64) (*domainauth.UserRecord, error)
	List(ctx context.Context, limit, offset int) ([]*domainauth.UserRecord, error)
	UpdateRole(ctx context.Context, id int64, role domainauth.Role) (*domainauth.UserRecord, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// PasswordHasher derives and checks password hashes.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	// Verify returns (false, nil) on mismatch and domainauth.ErrCorruptCredentialStore
	// when encoded cannot be parsed.
	Verify(ctx context.Context, plaintext, encoded string) (bool, error)
}

// TokenCodec issues and verifies signed session tokens.
type TokenCodec interface {
	Issue(subject int64, role domainauth.Role, ttl time.Duration) (domainauth.IssuedToken, error)
	// Verify returns a *domainauth.TokenError on rejection.
	Verify(token string) (domainauth.Claims, error)
}

// TokenRevocations tracks tokens invalidated before their expiry (logout).
type TokenRevocations interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AdmissionStore holds per-key token buckets. Take is atomic per key.
type AdmissionStore interface {
	Take(ctx context.Context, key string) (domainauth.Decision, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}
