package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/gatekeeper/internal/clock"
	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	obserrors "github.com/target/gatekeeper/internal/observability/errors"
	"github.com/target/gatekeeper/internal/observability/metrics"
	"github.com/target/gatekeeper/internal/observability/notify"
	"github.com/target/gatekeeper/internal/observability/statsd"
	"github.com/target/gatekeeper/internal/ports"
)

// DefaultTokenTTL is the session lifetime when none is configured.
const DefaultTokenTTL = 12 * time.Hour

// SecurityNotifier receives operational security events. *opsalert.Service implements it.
type SecurityNotifier interface {
	Notify(ctx context.Context, event notify.SecurityEvent)
}

// DummyHasher is implemented by hashers that can produce a valid hash matching no password.
type DummyHasher interface {
	DummyHash() string
}

// IdentityResolverOptions groups dependencies for IdentityResolver.
type IdentityResolverOptions struct {
	Users  ports.UserStore
	Hasher ports.PasswordHasher
	Tokens ports.TokenCodec
	// Revocations is optional; when nil logout only clears the client cookie.
	Revocations ports.TokenRevocations
	Clock       ports.Clock
	TokenTTL    time.Duration
	Notifier    SecurityNotifier
	Metrics     statsd.Sink
	Logger      *slog.Logger
}

// IdentityResolver turns request credentials into a Principal.
type IdentityResolver struct {
	users       ports.UserStore
	hasher      ports.PasswordHasher
	tokens      ports.TokenCodec
	revocations ports.TokenRevocations
	clock       ports.Clock
	ttl         time.Duration
	notifier    SecurityNotifier
	metrics     statsd.Sink
	logger      *slog.Logger
}

// NewIdentityResolver constructs an IdentityResolver.
func NewIdentityResolver(opts IdentityResolverOptions) *IdentityResolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &IdentityResolver{
		users:       opts.Users,
		hasher:      opts.Hasher,
		tokens:      opts.Tokens,
		revocations: opts.Revocations,
		clock:       c,
		ttl:         ttl,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		logger:      logger.With("component", "identity_resolver"),
	}
}

// TokenTTL returns the lifetime given to new sessions.
func (r *IdentityResolver) TokenTTL() time.Duration { return r.ttl }

// ResolveFromToken verifies token and returns the principal it names.
// Every failure, including a revocation lookup error, yields Anonymous.
func (r *IdentityResolver) ResolveFromToken(ctx context.Context, token string) domainauth.Principal {
	if token == "" {
		return domainauth.AnonymousPrincipal()
	}

	claims, err := r.tokens.Verify(token)
	if err != nil {
		kind := domainauth.TokenErrorKindOf(err)
		r.logger.DebugContext(ctx, "session token rejected", "reason", kind.String())
		metrics.EmitTokenRejected(r.metrics, kind.String())
		return domainauth.AnonymousPrincipal()
	}

	if r.revocations != nil && claims.ID != "" {
		revoked, revErr := r.revocations.IsRevoked(ctx, claims.ID)
		if revErr != nil {
			r.logger.WarnContext(ctx, "revocation lookup failed", "error", revErr)
			metrics.EmitTokenRejected(r.metrics, "revocation_error")
			return domainauth.AnonymousPrincipal()
		}
		if revoked {
			metrics.EmitTokenRejected(r.metrics, "revoked")
			return domainauth.AnonymousPrincipal()
		}
	}

	return domainauth.PrincipalForRole(claims.Subject, claims.Role)
}

// LoginResult is a successful login.
type LoginResult struct {
	Principal domainauth.Principal
	Token     domainauth.IssuedToken
}

// ResolveFromLogin checks cred against the user store and issues a session token.
//
// Unknown identifiers, wrong passwords and accounts that may not sign in all
// return ErrInvalidCredentials after the same amount of hashing work.
// Persistence failures wrap ErrStoreUnavailable; unparsable stored hashes wrap
// ErrCorruptCredentialStore and alert operators. Nothing is retried here.
func (r *IdentityResolver) ResolveFromLogin(ctx context.Context, cred domainauth.Credential) (*LoginResult, error) {
	start := r.clock.Now()
	res, err := r.login(ctx, cred)

	m := metrics.LoginMetric{Result: metrics.ResultSuccess, Duration: r.clock.Now().Sub(start), Err: err}
	switch {
	case err == nil:
	case errors.Is(err, domainauth.ErrInvalidCredentials):
		m.Result = metrics.ResultFailure
	default:
		m.Result = metrics.ResultError
	}
	metrics.EmitLogin(r.metrics, m)
	return res, err
}

func (r *IdentityResolver) login(ctx context.Context, cred domainauth.Credential) (*LoginResult, error) {
	identifier := domainauth.NormalizeIdentifier(cred.Identifier)
	if identifier == "" || cred.Password == "" {
		return nil, r.rejectWithoutUser(ctx, cred.Password)
	}

	rec, err := r.users.FindByIdentifier(ctx, identifier)
	switch {
	case errors.Is(err, domainauth.ErrUserNotFound):
		return nil, r.rejectWithoutUser(ctx, cred.Password)
	case err != nil:
		return nil, storeError("find user", err)
	}

	ok, err := r.hasher.Verify(ctx, cred.Password, rec.PasswordHash)
	if err != nil {
		if errors.Is(err, domainauth.ErrCorruptCredentialStore) {
			r.reportCorruptHash(ctx, rec.ID, err)
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, domainauth.ErrInvalidCredentials
	}

	principal := domainauth.PrincipalForRole(rec.ID, rec.Role)
	if !principal.IsAuthenticated() {
		return nil, domainauth.ErrInvalidCredentials
	}

	tok, err := r.tokens.Issue(rec.ID, rec.Role, r.ttl)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	// The session is already granted; bookkeeping failures are only logged.
	if err := r.users.RecordLogin(ctx, rec.ID, tok.IssuedAt); err != nil {
		r.logger.WarnContext(ctx, "record login failed", "user_id", rec.ID, "error", err)
	}

	r.logger.InfoContext(ctx, "login succeeded", "user_id", rec.ID, "role", string(rec.Role))
	return &LoginResult{Principal: principal, Token: tok}, nil
}

// rejectWithoutUser spends one verification on a dummy hash so a missing
// account costs the same as a wrong password.
func (r *IdentityResolver) rejectWithoutUser(ctx context.Context, password string) error {
	if d, ok := r.hasher.(DummyHasher); ok {
		if _, err := r.hasher.Verify(ctx, password, d.DummyHash()); err != nil && ctx.Err() != nil {
			return fmt.Errorf("verify password: %w", ctx.Err())
		}
	}
	return domainauth.ErrInvalidCredentials
}

func (r *IdentityResolver) reportCorruptHash(ctx context.Context, userID int64, err error) {
	r.logger.ErrorContext(ctx, "stored password hash is corrupt", "user_id", userID, "error", err)
	if r.notifier == nil {
		return
	}
	event := notify.SecurityEvent{
		Kind:       notify.KindCorruptCredentialStore,
		Summary:    "stored password hash could not be decoded",
		UserID:     userID,
		Error:      err.Error(),
		ErrorClass: obserrors.Classify(err),
		Severity:   notify.SeverityCritical,
		OccurredAt: r.clock.Now(),
	}
	// Delivery must not hold the request open.
	go r.notifier.Notify(context.WithoutCancel(ctx), event)
}

// Logout revokes token until its expiry. Invalid tokens need no revocation.
func (r *IdentityResolver) Logout(ctx context.Context, token string) error {
	if token == "" || r.revocations == nil {
		return nil
	}
	claims, err := r.tokens.Verify(token)
	if err != nil {
		return nil
	}
	if err := r.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt); err != nil {
		return storeError("revoke session", err)
	}
	r.logger.InfoContext(ctx, "session revoked", "user_id", claims.Subject)
	return nil
}

// storeError marks persistence failures as retryable. Cancellation passes through unchanged.
func storeError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, domainauth.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domainauth.ErrStoreUnavailable, err)
}
