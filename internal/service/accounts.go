package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	apperrors "github.com/target/gatekeeper/internal/errors"
	"github.com/target/gatekeeper/internal/observability/metrics"
	"github.com/target/gatekeeper/internal/observability/statsd"
	"github.com/target/gatekeeper/internal/ports"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

const (
	maxUsernameLength = 254
	defaultPageSize   = 50
	maxPageSize       = 200
)

// ErrSelfModification is returned when an admin tries to demote or delete their own account.
var ErrSelfModification = errors.New("admins cannot change or delete their own account")

// AccountServiceOptions groups dependencies for AccountService.
type AccountServiceOptions struct {
	Users   ports.UserRepository
	Hasher  ports.PasswordHasher
	Metrics statsd.Sink
	Logger  *slog.Logger
}

// AccountService handles registration and admin user management.
type AccountService struct {
	users   ports.UserRepository
	hasher  ports.PasswordHasher
	metrics statsd.Sink
	logger  *slog.Logger
}

// NewAccountService constructs an AccountService.
func NewAccountService(opts AccountServiceOptions) *AccountService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		users:   opts.Users,
		hasher:  opts.Hasher,
		metrics: opts.Metrics,
		logger:  logger.With("component", "accounts"),
	}
}

// RegisterInput is a self-service sign-up request.
type RegisterInput struct {
	Identifier      string
	Password        string
	ConfirmPassword string
}

// Register validates in and creates a standard user.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*domainauth.UserRecord, error) {
	if in.Password != in.ConfirmPassword {
		metrics.EmitRegister(s.metrics, metrics.ResultFailure)
		return nil, apperrors.ValidationField("confirm_password", "passwords do not match")
	}
	rec, err := s.CreateUser(ctx, in.Identifier, in.Password, domainauth.RoleUser)
	switch {
	case err == nil:
		metrics.EmitRegister(s.metrics, metrics.ResultSuccess)
	case apperrors.IsValidation(err), errors.Is(err, domainauth.ErrIdentifierTaken):
		metrics.EmitRegister(s.metrics, metrics.ResultFailure)
	default:
		metrics.EmitRegister(s.metrics, metrics.ResultError)
	}
	return rec, err
}

// CreateUser hashes password and stores a new account with role.
func (s *AccountService) CreateUser(ctx context.Context, identifier, password string, role domainauth.Role) (*domainauth.UserRecord, error) {
	username := domainauth.NormalizeIdentifier(identifier)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperrors.ValidationField("role", "unknown role")
	}

	encoded, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	rec, err := s.users.Create(ctx, domainauth.NewUser{Username: username, PasswordHash: encoded, Role: role})
	if err != nil {
		if errors.Is(err, domainauth.ErrIdentifierTaken) || apperrors.IsValidation(err) {
			return nil, err
		}
		return nil, storeError("create user", err)
	}
	s.logger.InfoContext(ctx, "user created", "user_id", rec.ID, "role", string(rec.Role))
	return rec, nil
}

// ValidatePassword enforces the minimum length in characters.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperrors.ValidationField("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	return nil
}

func validateUsername(username string) error {
	switch {
	case username == "":
		return apperrors.ValidationField("username", "username is required")
	case len(username) > maxUsernameLength:
		return apperrors.ValidationField("username", "username is too long")
	case strings.ContainsFunc(username, func(r rune) bool { return r < 0x20 || r == 0x7f }):
		return apperrors.ValidationField("username", "username contains control characters")
	}
	return nil
}

// ListUsers returns one page of accounts ordered by id.
func (s *AccountService) ListUsers(ctx context.Context, limit, offset int) ([]*domainauth.UserRecord, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)
	offset = max(offset, 0)

	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, storeError("list users", err)
	}
	return users, nil
}

// GetUser returns the account with id or ErrUserNotFound.
func (s *AccountService) GetUser(ctx context.Context, id int64) (*domainauth.UserRecord, error) {
	rec, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainauth.ErrUserNotFound) {
			return nil, err
		}
		return nil, storeError("get user", err)
	}
	return rec, nil
}

// SetRole changes the role of user id. actor must be an admin and may not change themselves.
func (s *AccountService) SetRole(ctx context.Context, actor domainauth.Principal, id int64, role domainauth.Role) (*domainauth.UserRecord, error) {
	if !role.Valid() {
		return nil, apperrors.ValidationField("role", "unknown role")
	}
	if actor.IsAdmin() && actor.UserID == id {
		return nil, ErrSelfModification
	}

	rec, err := s.users.UpdateRole(ctx, id, role)
	if err != nil {
		if errors.Is(err, domainauth.ErrUserNotFound) {
			return nil, err
		}
		return nil, storeError("update role", err)
	}
	s.logger.InfoContext(ctx, "user role changed", "user_id", id, "role", string(role), "actor_id", actor.UserID)
	return rec, nil
}

// AssignRole sets the role of the account named identifier. It is the operator
// path used by the admin CLI and skips the actor checks of SetRole.
func (s *AccountService) AssignRole(ctx context.Context, identifier string, role domainauth.Role) (*domainauth.UserRecord, error) {
	if !role.Valid() {
		return nil, apperrors.ValidationField("role", "unknown role")
	}
	rec, err := s.users.FindByIdentifier(ctx, domainauth.NormalizeIdentifier(identifier))
	if err != nil {
		if errors.Is(err, domainauth.ErrUserNotFound) {
			return nil, err
		}
		return nil, storeError("find user", err)
	}
	return s.SetRole(ctx, domainauth.AnonymousPrincipal(), rec.ID, role)
}

// DeleteUser removes user id. Deleting a missing user returns ErrUserNotFound.
func (s *AccountService) DeleteUser(ctx context.Context, actor domainauth.Principal, id int64) error {
	if actor.IsAdmin() && actor.UserID == id {
		return ErrSelfModification
	}
	deleted, err := s.users.Delete(ctx, id)
	if err != nil {
		return storeError("delete user", err)
	}
	if !deleted {
		return domainauth.ErrUserNotFound
	}
	s.logger.InfoContext(ctx, "user deleted", "user_id", id, "actor_id", actor.UserID)
	return nil
}

// EnsureAdmin creates an admin account when identifier is unused. It reports
// whether an account was created.
func (s *AccountService) EnsureAdmin(ctx context.Context, identifier, password string) (bool, error) {
	_, err := s.users.FindByIdentifier(ctx, domainauth.NormalizeIdentifier(identifier))
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, domainauth.ErrUserNotFound):
		return false, storeError("find user", err)
	}

	if _, err := s.CreateUser(ctx, identifier, password, domainauth.RoleAdmin); err != nil {
		if errors.Is(err, domainauth.ErrIdentifierTaken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
