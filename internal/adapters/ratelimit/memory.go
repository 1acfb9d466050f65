// Package ratelimit provides an in-process token-bucket AdmissionStore.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/target/gatekeeper/internal/clock"
	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	"github.com/target/gatekeeper/internal/ports"
	"golang.org/x/time/rate"
)

var _ ports.AdmissionStore = (*MemoryStore)(nil)

// Config describes one bucket shape shared by every key.
type Config struct {
	// Capacity is the bucket size; a new bucket starts with Capacity tokens.
	Capacity int
	// RefillInterval is the time to regain one token.
	RefillInterval time.Duration
	// IdleHorizon is how long a bucket may go untouched before it is dropped.
	IdleHorizon time.Duration
}

// FullRefill is the time an empty bucket needs to become full again.
func (c Config) FullRefill() time.Duration {
	return time.Duration(c.Capacity) * c.RefillInterval
}

// shardCount spreads keys across independently locked maps.
const shardCount = 16

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type shard struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// MemoryStore keeps one rate.Limiter per key. Refill is computed lazily from
// elapsed time on each Take; there is no background timer.
type MemoryStore struct {
	cfg    Config
	clock  ports.Clock
	limit  rate.Limit
	shards [shardCount]*shard
}

// NewMemoryStore constructs a MemoryStore. A nil clock uses system time.
func NewMemoryStore(cfg Config, c ports.Clock) *MemoryStore {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if cfg.IdleHorizon < cfg.FullRefill() {
		cfg.IdleHorizon = cfg.FullRefill()
	}
	if c == nil {
		c = clock.Real{}
	}
	s := &MemoryStore{
		cfg:   cfg,
		clock: c,
		limit: rate.Every(cfg.RefillInterval),
	}
	for i := range s.shards {
		s.shards[i] = &shard{buckets: make(map[string]*bucket)}
	}
	return s
}

// Take consumes one token for key if available.
func (s *MemoryStore) Take(_ context.Context, key string) (domainauth.Decision, error) {
	now := s.clock.Now()
	lim := s.limiterFor(key, now)

	if lim.AllowN(now, 1) {
		return domainauth.Decision{Allowed: true}, nil
	}
	return domainauth.Decision{Allowed: false, RetryAfter: s.retryAfter(lim, now)}, nil
}

// Len returns the number of live buckets.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.buckets)
		sh.mu.Unlock()
	}
	return n
}

func (s *MemoryStore) limiterFor(key string, now time.Time) *rate.Limiter {
	sh := s.shards[xxhash.Sum64String(key)%shardCount]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.sweepLocked(now, s.cfg.IdleHorizon)

	b, ok := sh.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.limit, s.cfg.Capacity)}
		sh.buckets[key] = b
	}
	if now.After(b.lastSeen) {
		b.lastSeen = now
	}
	return b.limiter
}

// sweepLocked drops buckets idle past the horizon, at most once per horizon.
// A dropped bucket would have refilled completely, so recreating it full is equivalent.
func (sh *shard) sweepLocked(now time.Time, horizon time.Duration) {
	if now.Sub(sh.lastSweep) < horizon {
		return
	}
	for k, b := range sh.buckets {
		if now.Sub(b.lastSeen) > horizon {
			delete(sh.buckets, k)
		}
	}
	sh.lastSweep = now
}

func (s *MemoryStore) retryAfter(lim *rate.Limiter, now time.Time) time.Duration {
	missing := 1 - lim.TokensAt(now)
	if missing <= 0 {
		return 0
	}
	secs := missing / float64(s.limit)
	return time.Duration(math.Ceil(secs * float64(time.Second)))
}
