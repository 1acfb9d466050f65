package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	"github.com/target/gatekeeper/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.UserRepository   = (*MemoryUserStore)(nil)
	_ ports.PasswordHasher   = (*StubHasher)(nil)
	_ ports.TokenRevocations = (*MemoryRevocations)(nil)
)

// MemoryUserStore is an in-memory user repository. Func fields, when set,
// replace the default behaviour so tests can inject failures.
type MemoryUserStore struct {
	FindFunc        func(ctx context.Context, identifier string) (*domainauth.UserRecord, error)
	RecordLoginFunc func(ctx context.Context, id int64, at time.Time) error

	mu     sync.Mutex
	users  map[int64]domainauth.UserRecord
	nextID int64
	logins []int64
}

// NewMemoryUserStore creates an empty store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[int64]domainauth.UserRecord)}
}

// Seed inserts a record with an already-encoded hash and returns its id.
func (m *MemoryUserStore) Seed(username, passwordHash string, role domainauth.Role) int64 {
	rec, err := m.Create(context.Background(), domainauth.NewUser{Username: username, PasswordHash: passwordHash, Role: role})
	if err != nil {
		panic(err)
	}
	return rec.ID
}

// Logins returns the ids passed to RecordLogin, in call order.
func (m *MemoryUserStore) Logins() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.logins)
}

func (m *MemoryUserStore) FindByIdentifier(ctx context.Context, identifier string) (*domainauth.UserRecord, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, identifier)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := domainauth.NormalizeIdentifier(identifier)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == want {
			return &u, nil
		}
	}
	return nil, domainauth.ErrUserNotFound
}

func (m *MemoryUserStore) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	if m.RecordLoginFunc != nil {
		return m.RecordLoginFunc(ctx, id, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domainauth.ErrUserNotFound
	}
	u.LastLoginAt = &at
	m.users[id] = u
	m.logins = append(m.logins, id)
	return nil
}

func (m *MemoryUserStore) Create(_ context.Context, in domainauth.NewUser) (*domainauth.UserRecord, error) {
	name := domainauth.NormalizeIdentifier(in.Username)
	if name == "" {
		return nil, errors.New("username is required")
	}
	role := in.Role
	if role == "" {
		role = domainauth.RoleUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == name {
			return nil, domainauth.ErrIdentifierTaken
		}
	}
	m.nextID++
	rec := domainauth.UserRecord{
		ID:           m.nextID,
		Username:     name,
		PasswordHash: in.PasswordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	m.users[rec.ID] = rec
	return &rec, nil
}

func (m *MemoryUserStore) GetByID(_ context.Context, id int64) (*domainauth.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domainauth.ErrUserNotFound
	}
	return &u, nil
}

func (m *MemoryUserStore) List(_ context.Context, limit, offset int) ([]*domainauth.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	if offset > len(ids) {
		offset = len(ids)
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	out := make([]*domainauth.UserRecord, 0, len(ids))
	for _, id := range ids {
		u := m.users[id]
		out = append(out, &u)
	}
	return out, nil
}

func (m *MemoryUserStore) UpdateRole(_ context.Context, id int64, role domainauth.Role) (*domainauth.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domainauth.ErrUserNotFound
	}
	u.Role = role
	m.users[id] = u
	return &u, nil
}

func (m *MemoryUserStore) Delete(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return false, nil
	}
	delete(m.users, id)
	return true, nil
}

// StubHasher encodes passwords as "stub$<plaintext>". Verify reports
// ErrCorruptCredentialStore for anything without that prefix.
type StubHasher struct {
	verifyCalls atomic.Int64
}

const stubPrefix = "stub$"

func (h *StubHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return stubPrefix + plaintext, nil
}

func (h *StubHasher) Verify(ctx context.Context, plaintext, encoded string) (bool, error) {
	h.verifyCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return false, err
	}
	rest, ok := strings.CutPrefix(encoded, stubPrefix)
	if !ok {
		return false, domainauth.ErrCorruptCredentialStore
	}
	return rest == plaintext, nil
}

// DummyHash returns a valid encoding that matches no submitted password.
func (h *StubHasher) DummyHash() string { return stubPrefix + "\x00dummy" }

// VerifyCalls counts Verify invocations.
func (h *StubHasher) VerifyCalls() int64 { return h.verifyCalls.Load() }

// MemoryRevocations is an in-memory revocation list.
type MemoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	lookups atomic.Int64
	Err     error
}

// NewMemoryRevocations creates an empty list.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{revoked: make(map[string]time.Time)}
}

func (r *MemoryRevocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = until
	return nil
}

func (r *MemoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.lookups.Add(1)
	if r.Err != nil {
		return false, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked[tokenID]
	return ok, nil
}

// Lookups counts IsRevoked invocations.
func (r *MemoryRevocations) Lookups() int64 { return r.lookups.Load() }
