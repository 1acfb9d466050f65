package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// MinSigningKeyBytes is the shortest accepted HMAC signing key.
const MinSigningKeyBytes = 32

// ErrSigningKeyTooShort is returned by Validate when AUTH_SIGNING_KEY is missing or short.
var ErrSigningKeyTooShort = fmt.Errorf("AUTH_SIGNING_KEY must be at least %d bytes", MinSigningKeyBytes)

// AuthConfig controls credential hashing, session tokens and the session cookie.
type AuthConfig struct {
	// SigningKey signs session tokens. Rotating it invalidates every session.
	SigningKey string        `env:"AUTH_SIGNING_KEY"`
	TokenTTL   time.Duration `env:"AUTH_TOKEN_TTL"   envDefault:"12h"`
	CookieName string        `env:"AUTH_COOKIE_NAME" envDefault:"token"`
	LoginPath  string        `env:"AUTH_LOGIN_PATH"  envDefault:"/login"`

	Hash HashConfig `envPrefix:"AUTH_HASH_"`

	// AllowRegistration exposes POST /register.
	AllowRegistration bool `env:"AUTH_ALLOW_REGISTRATION" envDefault:"true"`

	// BootstrapAdmin seeds an admin account on startup when both fields are set.
	BootstrapAdmin BootstrapAdminConfig `envPrefix:"AUTH_BOOTSTRAP_ADMIN_"`
}

// HashConfig holds the argon2id cost parameters.
type HashConfig struct {
	MemoryKiB   uint32 `env:"MEMORY_KIB"  envDefault:"65536"`
	Iterations  uint32 `env:"ITERATIONS"  envDefault:"3"`
	Parallelism uint8  `env:"PARALLELISM" envDefault:"2"`
	// Workers bounds concurrent hash computations. Zero means one per CPU.
	Workers int `env:"WORKERS" envDefault:"0"`
}

// BootstrapAdminConfig names the account created by EnsureAdmin at startup.
type BootstrapAdminConfig struct {
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
}

// Enabled reports whether a bootstrap admin was configured.
func (b BootstrapAdminConfig) Enabled() bool {
	return b.Username != "" && b.Password != ""
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.TokenTTL <= 0 {
		a.TokenTTL = 12 * time.Hour
	}
	if a.CookieName = strings.TrimSpace(a.CookieName); a.CookieName == "" {
		a.CookieName = "token"
	}
	if a.LoginPath = strings.TrimSpace(a.LoginPath); !strings.HasPrefix(a.LoginPath, "/") {
		a.LoginPath = "/login"
	}
	a.BootstrapAdmin.Username = strings.ToLower(strings.TrimSpace(a.BootstrapAdmin.Username))
	a.Hash.sanitize()
}

// Validate checks values that have no safe default.
func (a *AuthConfig) Validate() error {
	if len(a.SigningKey) < MinSigningKeyBytes {
		return ErrSigningKeyTooShort
	}
	if a.BootstrapAdmin.Username != "" && a.BootstrapAdmin.Password == "" {
		return errors.New("AUTH_BOOTSTRAP_ADMIN_PASSWORD is required when AUTH_BOOTSTRAP_ADMIN_USERNAME is set")
	}
	return nil
}

func (h *HashConfig) sanitize() {
	// argon2 requires at least 8 KiB per lane.
	if h.Parallelism == 0 {
		h.Parallelism = 1
	}
	if minMem := 8 * uint32(h.Parallelism); h.MemoryKiB < minMem {
		h.MemoryKiB = minMem
	}
	if h.Iterations == 0 {
		h.Iterations = 1
	}
	if h.Workers <= 0 {
		h.Workers = runtime.NumCPU()
	}
}
