package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/gatekeeper/config"
	"github.com/target/gatekeeper/internal/adapters/passwordhash"
	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	mockauth "github.com/target/gatekeeper/internal/mocks/auth"
	"github.com/target/gatekeeper/internal/ports"
)

func TestIsLikelyRemoteHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"", false},
		{"localhost", false},
		{" LOCALHOST ", false},
		{"127.0.0.1", false},
		{"127.0.0.2", false},
		{"::1", false},
		{"db.local", false},
		{"10.0.0.5", true},
		{"db.prod.example.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, isLikelyRemoteHost(tt.host))
		})
	}
}

type harness struct {
	users  *mockauth.MemoryUserStore
	cfg    config.AppConfig
	stdout bytes.Buffer
	stderr bytes.Buffer
	opened int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	stubTerminal(t, false, nil)
	h := &harness{users: mockauth.NewMemoryUserStore()}
	h.cfg.Postgres.Host = "localhost"
	h.cfg.Auth.Hash = config.HashConfig{MemoryKiB: 8, Iterations: 1, Parallelism: 1, Workers: 1}
	return h
}

func (h *harness) run(stdin string, args ...string) error {
	h.stdout.Reset()
	h.stderr.Reset()
	app := newApp(&adminEnv{
		logger: slog.New(slog.DiscardHandler),
		openUsers: func(context.Context, *adminEnv) (ports.UserRepository, func() error, error) {
			h.opened++
			return h.users, func() error { return nil }, nil
		},
		loadConfig: func() (config.AppConfig, error) { return h.cfg, nil },
	})
	app.Reader = strings.NewReader(stdin)
	app.Writer = &h.stdout
	app.ErrWriter = &h.stderr
	return app.RunContext(context.Background(), append([]string{"gatekeeper-admin"}, args...))
}

func stubTerminal(t *testing.T, terminal bool, passwords []string) {
	t.Helper()
	origTerm, origRead := isTerminal, readPassword
	t.Cleanup(func() { isTerminal, readPassword = origTerm, origRead })

	isTerminal = func(int) bool { return terminal }
	readPassword = func(int) ([]byte, error) {
		if len(passwords) == 0 {
			return nil, errors.New("no more input")
		}
		next := passwords[0]
		passwords = passwords[1:]
		return []byte(next), nil
	}
}

func TestCreateUser_PasswordStdin(t *testing.T) {
	h := newHarness(t)

	err := h.run("correct-horse\n", "create-user", "--username", " Alice@Example.com ", "--role", "admin", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, h.stdout.String(), "created alice@example.com")
	assert.Contains(t, h.stdout.String(), "role admin")

	rec, err := h.users.FindByIdentifier(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, rec.Role)

	hasher := passwordhash.New(passwordhash.Options{})
	ok, err := hasher.Verify(context.Background(), "correct-horse", rec.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateUser_TerminalPrompt(t *testing.T) {
	h := newHarness(t)
	stubTerminal(t, true, []string{"correct-horse", "correct-horse"})

	require.NoError(t, h.run("", "create-user", "-u", "bob@example.com"))
	assert.Contains(t, h.stderr.String(), "Repeat password: ")

	rec, err := h.users.FindByIdentifier(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleUser, rec.Role)
}

func TestCreateUser_TerminalMismatch(t *testing.T) {
	h := newHarness(t)
	stubTerminal(t, true, []string{"correct-horse", "battery-staple"})

	err := h.run("", "create-user", "-u", "bob@example.com")
	require.ErrorIs(t, err, errPasswordMismatch)
	assert.Zero(t, h.opened)
}

func TestCreateUser_Errors(t *testing.T) {
	h := newHarness(t)
	h.users.Seed("taken@example.com", "x", domainauth.RoleUser)

	require.Error(t, h.run("correct-horse\n", "create-user", "--password-stdin"))
	require.Error(t, h.run("correct-horse\n", "create-user", "-u", "x@example.com", "--role", "root", "--password-stdin"))
	require.Error(t, h.run("short\n", "create-user", "-u", "x@example.com", "--password-stdin"))
	require.ErrorIs(t,
		h.run("correct-horse\n", "create-user", "-u", "taken@example.com", "--password-stdin"),
		domainauth.ErrIdentifierTaken)
	require.Error(t, h.run("", "create-user", "-u", "x@example.com", "--password-stdin"))
}

func TestSetRole(t *testing.T) {
	h := newHarness(t)
	id := h.users.Seed("carol@example.com", "x", domainauth.RoleUser)

	require.NoError(t, h.run("", "set-role", "-u", "CAROL@example.com", "--role", "admin"))
	assert.Equal(t, "carol@example.com is now admin\n", h.stdout.String())

	rec, err := h.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, rec.Role)

	require.ErrorIs(t, h.run("", "set-role", "-u", "nobody@example.com", "--role", "user"), domainauth.ErrUserNotFound)
	require.Error(t, h.run("", "set-role", "-u", "carol@example.com", "--role", "owner"))
}

func TestRemoteHostGuard(t *testing.T) {
	h := newHarness(t)
	h.cfg.Postgres.Host = "db.prod.example.com"
	h.users.Seed("dave@example.com", "x", domainauth.RoleUser)

	err := h.run("", "set-role", "-u", "dave@example.com", "--role", "admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--allow-remote")
	assert.Zero(t, h.opened)

	err = h.run("nope\n", "set-role", "-u", "dave@example.com", "--role", "admin", "--allow-remote")
	require.ErrorIs(t, err, errAborted)
	assert.Zero(t, h.opened)

	require.NoError(t, h.run("db.prod.example.com\n", "set-role", "-u", "dave@example.com", "--role", "admin", "--allow-remote"))
	assert.Contains(t, h.stderr.String(), "does not look like a local address")
	assert.Equal(t, 1, h.opened)
}

func TestRemoteHostGuard_ConfirmThenPasswordStdin(t *testing.T) {
	h := newHarness(t)
	h.cfg.Postgres.Host = "10.1.2.3"

	require.NoError(t, h.run("10.1.2.3\ncorrect-horse\n",
		"create-user", "-u", "erin@example.com", "--password-stdin", "--allow-remote"))

	_, err := h.users.FindByIdentifier(context.Background(), "erin@example.com")
	require.NoError(t, err)
}

func TestHashPassword(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("correct-horse\n", "hash-password", "--password-stdin"))
	encoded := strings.TrimSpace(h.stdout.String())
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))
	assert.Contains(t, encoded, "m=8,t=1,p=1")

	ok, err := passwordhash.New(passwordhash.Options{}).Verify(context.Background(), "correct-horse", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, h.opened)

	require.Error(t, h.run("short\n", "hash-password", "--password-stdin"))
}

func TestConfigLoadFailureStopsCommand(t *testing.T) {
	stubTerminal(t, false, nil)
	app := newApp(&adminEnv{
		logger:     slog.New(slog.DiscardHandler),
		loadConfig: func() (config.AppConfig, error) { return config.AppConfig{}, errors.New("bad env") },
	})
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}
	err := app.RunContext(context.Background(), []string{"gatekeeper-admin", "hash-password"})
	require.EqualError(t, err, "bad env")
}
