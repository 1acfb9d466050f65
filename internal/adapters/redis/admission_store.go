package redis

// Package redis provides Redis-based adapters for the gatekeeper system.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	"github.com/target/gatekeeper/internal/ports"
)

var _ ports.AdmissionStore = (*AdmissionStore)(nil)

// takeScript refills a bucket from elapsed server time and consumes one token.
// It runs atomically, so concurrent instances never double-spend a token.
// A missing key is a full bucket; the key expires after the idle horizon.
var takeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])
local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end
if now > ts then
  tokens = math.min(capacity, tokens + (now - ts) / interval)
  ts = now
end
local allowed = 0
local retry = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  retry = math.ceil((1 - tokens) * interval)
end
redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', tostring(ts))
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, retry}
`)

// AdmissionStoreOptions configures an AdmissionStore.
type AdmissionStoreOptions struct {
	Capacity       int
	RefillInterval time.Duration
	IdleHorizon    time.Duration
	Prefix         string
}

// AdmissionStore is a token-bucket store shared by every instance behind a load balancer.
type AdmissionStore struct {
	client   redis.UniversalClient
	prefix   string
	capacity int
	interval time.Duration
	idle     time.Duration
}

// NewAdmissionStore creates a Redis-backed admission store.
func NewAdmissionStore(client redis.UniversalClient, opts AdmissionStoreOptions) *AdmissionStore {
	if opts.Capacity < 1 {
		opts.Capacity = 1
	}
	if opts.RefillInterval < time.Millisecond {
		opts.RefillInterval = time.Second
	}
	if full := time.Duration(opts.Capacity) * opts.RefillInterval; opts.IdleHorizon < full {
		opts.IdleHorizon = full
	}
	if opts.Prefix == "" {
		opts.Prefix = "admission:"
	}
	return &AdmissionStore{
		client:   client,
		prefix:   opts.Prefix,
		capacity: opts.Capacity,
		interval: opts.RefillInterval,
		idle:     opts.IdleHorizon,
	}
}

// Take consumes a token for key.
func (s *AdmissionStore) Take(ctx context.Context, key string) (domainauth.Decision, error) {
	if key == "" {
		return domainauth.Decision{}, errors.New("admission key cannot be empty")
	}

	res, err := takeScript.Run(ctx, s.client, []string{s.prefix + key},
		s.capacity, s.interval.Milliseconds(), s.idle.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return domainauth.Decision{}, fmt.Errorf("redis admission take: %w", err)
	}
	if len(res) != 2 {
		return domainauth.Decision{}, fmt.Errorf("redis admission take: unexpected reply length %d", len(res))
	}

	return domainauth.Decision{
		Allowed:    res[0] == 1,
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
	}, nil
}
