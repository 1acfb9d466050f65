// Package sessiontoken implements ports.TokenCodec as HS256-signed JWTs.
//
// Verification checks, in order: the MAC over the raw header and payload,
// the validity window issued_at <= now < expires_at, then the claim structure.
// Rotating the signing key invalidates every outstanding token.
package sessiontoken

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/target/gatekeeper/internal/clock"
	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	"github.com/target/gatekeeper/internal/ports"
)

var _ ports.TokenCodec = (*Codec)(nil)

// MinKeyLen is the shortest accepted HMAC key in bytes.
const MinKeyLen = 32

// ErrWeakKey is returned by NewSigningKey for short keys.
var ErrWeakKey = fmt.Errorf("signing key must be at least %d bytes", MinKeyLen)

// SigningKey is the process-wide HMAC secret. It is created once at startup
// and never modified.
type SigningKey struct {
	b []byte
}

// NewSigningKey copies raw into a SigningKey.
func NewSigningKey(raw []byte) (SigningKey, error) {
	if len(raw) < MinKeyLen {
		return SigningKey{}, ErrWeakKey
	}
	b := make([]byte, len(raw))
	copy(b, raw)
	return SigningKey{b: b}, nil
}

// IsZero reports whether the key was never initialised.
func (k SigningKey) IsZero() bool { return len(k.b) == 0 }

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Options configures a Codec.
type Options struct {
	Key   SigningKey
	Clock ports.Clock
}

// Codec issues and verifies session tokens.
type Codec struct {
	key    SigningKey
	clock  ports.Clock
	method *jwt.SigningMethodHMAC
	parser *jwt.Parser
}

// New constructs a Codec. The key must be non-zero.
func New(opts Options) (*Codec, error) {
	if opts.Key.IsZero() {
		return nil, errors.New("sessiontoken: signing key is required")
	}
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}
	return &Codec{
		key:    opts.Key,
		clock:  c,
		method: jwt.SigningMethodHS256,
		// Window checks are done explicitly against the injected clock.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Issue signs a token for subject valid over [now, now+ttl).
func (c *Codec) Issue(subject int64, role domainauth.Role, ttl time.Duration) (domainauth.IssuedToken, error) {
	if ttl <= 0 {
		return domainauth.IssuedToken{}, errors.New("sessiontoken: ttl must be positive")
	}
	// Numeric dates carry whole seconds.
	now := c.clock.Now().Truncate(time.Second)
	exp := now.Add(ttl).Truncate(time.Second)
	id := uuid.NewString()

	claims := sessionClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   strconv.FormatInt(subject, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.key.b)
	if err != nil {
		return domainauth.IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}
	return domainauth.IssuedToken{Value: signed, ID: id, IssuedAt: now, ExpiresAt: exp}, nil
}

// Verify authenticates token and returns its claims.
func (c *Codec) Verify(token string) (domainauth.Claims, error) {
	if err := c.verifySignature(token); err != nil {
		return domainauth.Claims{}, domainauth.NewTokenError(domainauth.TokenBadSignature, err)
	}

	var claims sessionClaims
	if _, err := c.parser.ParseWithClaims(token, &claims, c.keyFunc); err != nil {
		return domainauth.Claims{}, domainauth.NewTokenError(classifyParseError(err), err)
	}

	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return domainauth.Claims{}, domainauth.NewTokenError(domainauth.TokenMalformed, errors.New("missing validity window"))
	}
	iat, exp := claims.IssuedAt.UTC(), claims.ExpiresAt.UTC()
	now := c.clock.Now()
	if now.Before(iat) || !now.Before(exp) {
		return domainauth.Claims{}, domainauth.NewTokenError(domainauth.TokenExpired,
			fmt.Errorf("outside [%s, %s)", iat.UTC().Format(time.RFC3339), exp.UTC().Format(time.RFC3339)))
	}

	subject, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return domainauth.Claims{}, domainauth.NewTokenError(domainauth.TokenMalformed, fmt.Errorf("subject: %w", err))
	}
	role, ok := domainauth.ParseRole(claims.Role)
	if !ok {
		return domainauth.Claims{}, domainauth.NewTokenError(domainauth.TokenMalformed, fmt.Errorf("unknown role %q", claims.Role))
	}

	return domainauth.Claims{
		ID:        claims.ID,
		Subject:   subject,
		Role:      role,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}, nil
}

// verifySignature checks the MAC before anything in the token is decoded, so
// any alteration of header, payload or signature is reported as a bad signature.
func (c *Codec) verifySignature(token string) error {
	dot := strings.LastIndexByte(token, '.')
	if dot <= 0 || strings.Count(token, ".") != 2 {
		return errors.New("token is not three segments")
	}
	sig, err := base64.RawURLEncoding.Strict().DecodeString(token[dot+1:])
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	return c.method.Verify(token[:dot], sig, c.key.b)
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != c.method.Alg() {
		return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
	}
	return c.key.b, nil
}

func classifyParseError(err error) domainauth.TokenErrorKind {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return domainauth.TokenBadSignature
	default:
		return domainauth.TokenMalformed
	}
}
