package auth

// Package auth contains domain-level types for authentication and authorization.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Role represents a stored user's authorization role.
// Keep string form for easy persistence and token claims.
// Valid values are defined as constants below.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	// RoleNone marks an account that exists but may not sign in.
	RoleNone Role = "none"
)

// ParseRole converts a persisted or claimed role string into a Role.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleUser:
		return RoleUser, true
	case RoleNone:
		return RoleNone, true
	default:
		return "", false
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// PrincipalKind enumerates the privilege levels a request can carry.
type PrincipalKind int

const (
	// Anonymous is the zero value so an uninitialised Principal never grants access.
	Anonymous PrincipalKind = iota
	User
	Admin
)

func (k PrincipalKind) String() string {
	switch k {
	case User:
		return "user"
	case Admin:
		return "admin"
	default:
		return "anonymous"
	}
}

// Principal is the verified identity attached to a single request.
// It is a value type; copies are independent and never mutated after creation.
type Principal struct {
	Kind   PrincipalKind
	UserID int64
}

// AnonymousPrincipal returns the principal for a caller with no valid credential.
func AnonymousPrincipal() Principal { return Principal{} }

// PrincipalForRole builds the principal for a verified user id and role.
// Roles that cannot sign in map to Anonymous.
func PrincipalForRole(userID int64, role Role) Principal {
	switch role {
	case RoleAdmin:
		return Principal{Kind: Admin, UserID: userID}
	case RoleUser:
		return Principal{Kind: User, UserID: userID}
	default:
		return AnonymousPrincipal()
	}
}

// IsAuthenticated is true for User and Admin principals.
func (p Principal) IsAuthenticated() bool { return p.Kind == User || p.Kind == Admin }

// IsAdmin is true only for Admin principals.
func (p Principal) IsAdmin() bool { return p.Kind == Admin }

// Role returns the role the principal was derived from.
func (p Principal) Role() Role {
	switch p.Kind {
	case Admin:
		return RoleAdmin
	case User:
		return RoleUser
	default:
		return RoleNone
	}
}

func (p Principal) String() string { return p.Kind.String() }

// Credential is a login attempt. The password is held only for the duration of a request.
type Credential struct {
	Identifier string
	Password   string
}

// NormalizeIdentifier trims and lowercases a login identifier.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// UserRecord is the persisted account. PasswordHash is a self-describing encoded hash.
type UserRecord struct {
	ID           int64      `json:"id"           db:"id"`
	Username     string     `json:"username"     db:"username"`
	PasswordHash string     `json:"-"            db:"password_hash"`
	Role         Role       `json:"role"         db:"role"`
	CreatedAt    time.Time  `json:"created_at"   db:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at" db:"last_login_at"`
}

// NewUser carries the fields required to create an account.
type NewUser struct {
	Username     string
	PasswordHash string
	Role         Role
}

// Claims are the verified contents of a session token.
type Claims struct {
	ID        string
	Subject   int64
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssuedToken is an encoded session token and its validity window [IssuedAt, ExpiresAt).
type IssuedToken struct {
	Value     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Decision is the admission controller's verdict for one request.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}
