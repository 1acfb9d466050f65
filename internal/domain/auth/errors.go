package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned for every failed login, whatever the cause.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrCorruptCredentialStore means a stored hash could not be decoded. Operators are alerted.
	ErrCorruptCredentialStore = errors.New("corrupt credential store")

	// ErrThrottled is returned when the admission controller rejects a request.
	ErrThrottled = errors.New("too many requests")

	// ErrStoreUnavailable wraps transient persistence failures. Callers may retry.
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// ErrUserNotFound is returned by stores when an identifier has no account.
	ErrUserNotFound = errors.New("user not found")

	// ErrIdentifierTaken is returned when registering an identifier that already exists.
	ErrIdentifierTaken = errors.New("identifier already registered")
)

// TokenErrorKind classifies why a session token was rejected.
type TokenErrorKind int

const (
	TokenBadSignature TokenErrorKind = iota + 1
	TokenExpired
	TokenMalformed
)

func (k TokenErrorKind) String() string {
	switch k {
	case TokenBadSignature:
		return "bad_signature"
	case TokenExpired:
		return "expired"
	case TokenMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// TokenError is returned by token verification. It never reaches the caller of a request.
type TokenError struct {
	Kind TokenErrorKind
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
	}
	return "token " + e.Kind.String()
}

func (e *TokenError) Unwrap() error { return e.Err }

// Is matches another *TokenError by kind so callers can compare against a template.
func (e *TokenError) Is(target error) bool {
	var t *TokenError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewTokenError wraps err with the given kind.
func NewTokenError(kind TokenErrorKind, err error) *TokenError {
	return &TokenError{Kind: kind, Err: err}
}

// TokenErrorKindOf extracts the kind from err, or zero when err is not a TokenError.
func TokenErrorKindOf(err error) TokenErrorKind {
	var te *TokenError
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}

// IsRetryable reports whether err is a transient failure worth retrying by the caller.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
