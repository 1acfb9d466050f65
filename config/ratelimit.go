package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RateLimitBackend selects where admission buckets live.
type RateLimitBackend string

const (
	// RateLimitBackendMemory keeps buckets in process; each instance limits independently.
	RateLimitBackendMemory RateLimitBackend = "memory"
	// RateLimitBackendRedis shares buckets across instances.
	RateLimitBackendRedis RateLimitBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for RateLimitBackend.
func (b *RateLimitBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "memory", "redis":
		*b = RateLimitBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid RateLimitBackend: %q (valid options: memory, redis)", v)
	}
}

// RateLimitConfig controls admission control on sensitive routes.
type RateLimitConfig struct {
	Backend RateLimitBackend `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`
	// Capacity is the burst each address gets per route.
	Capacity int `env:"RATE_LIMIT_CAPACITY" envDefault:"5"`
	// RefillInterval is the time to regain one attempt.
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"12s"`
	// IdleHorizon is how long an untouched bucket is kept.
	IdleHorizon time.Duration `env:"RATE_LIMIT_IDLE_HORIZON" envDefault:"10m"`
	// Routes are ServeMux patterns; each gets its own bucket namespace.
	Routes []string `env:"RATE_LIMIT_ROUTES" envDefault:"POST /login;POST /register;POST /password-reset" envSeparator:";"`
	// TrustProxyHeaders keys buckets on the first X-Forwarded-For hop.
	// Enable only behind a proxy that overwrites the header.
	TrustProxyHeaders bool `env:"RATE_LIMIT_TRUST_PROXY_HEADERS" envDefault:"false"`
}

// Sanitize applies guardrails to rate limit configuration values.
func (r *RateLimitConfig) Sanitize() {
	if r.Backend == "" {
		r.Backend = RateLimitBackendMemory
	}
	if r.Capacity < 1 {
		r.Capacity = 1
	}
	if r.RefillInterval < time.Millisecond {
		r.RefillInterval = 12 * time.Second
	}
	if full := time.Duration(r.Capacity) * r.RefillInterval; r.IdleHorizon < full {
		r.IdleHorizon = full
	}

	routes := make([]string, 0, len(r.Routes))
	seen := make(map[string]struct{}, len(r.Routes))
	for _, route := range r.Routes {
		route = strings.Join(strings.Fields(route), " ")
		if route == "" {
			continue
		}
		if _, dup := seen[route]; dup {
			continue
		}
		seen[route] = struct{}{}
		routes = append(routes, route)
	}
	r.Routes = routes
}

// Validate checks that the selected backend can be built.
func (r *RateLimitConfig) Validate(redis RedisConfig) error {
	if r.Backend == RateLimitBackendRedis && !redis.Configured() {
		return errors.New("RATE_LIMIT_BACKEND=redis requires a Redis configuration")
	}
	return nil
}
