package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/gatekeeper/internal/clock"
)

func startTime() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

func TestMemoryStore_CapacityThenRefill(t *testing.T) {
	c := clock.NewFixed(startTime())
	s := NewMemoryStore(Config{Capacity: 5, RefillInterval: time.Second, IdleHorizon: time.Minute}, c)
	ctx := context.Background()

	for i := range 5 {
		d, err := s.Take(ctx, "login|10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
	}

	d, err := s.Take(ctx, "login|10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)

	c.Advance(time.Second)
	d, err = s.Take(ctx, "login|10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = s.Take(ctx, "login|10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestMemoryStore_KeysAreIndependent(t *testing.T) {
	c := clock.NewFixed(startTime())
	s := NewMemoryStore(Config{Capacity: 1, RefillInterval: time.Minute}, c)
	ctx := context.Background()

	d, _ := s.Take(ctx, "login|a")
	assert.True(t, d.Allowed)
	d, _ = s.Take(ctx, "login|a")
	assert.False(t, d.Allowed)

	d, _ = s.Take(ctx, "login|b")
	assert.True(t, d.Allowed)
	d, _ = s.Take(ctx, "register|a")
	assert.True(t, d.Allowed)
}

func TestMemoryStore_IdleBucketsEvictedAndRecreatedFull(t *testing.T) {
	c := clock.NewFixed(startTime())
	s := NewMemoryStore(Config{Capacity: 2, RefillInterval: time.Second, IdleHorizon: 10 * time.Second}, c)
	ctx := context.Background()

	for range 3 {
		_, _ = s.Take(ctx, "login|idle")
	}
	require.Equal(t, 1, s.Len())

	// Sweeps are per shard; touch a different key that shares the idle key's shard.
	other := sameShardKey(t, "login|idle")
	c.Advance(11 * time.Second)
	d, err := s.Take(ctx, other)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, s.Len(), "idle bucket should have been swept")

	for i := range 2 {
		d, _ = s.Take(ctx, "login|idle")
		assert.True(t, d.Allowed, "recreated bucket request %d", i+1)
	}
	d, _ = s.Take(ctx, "login|idle")
	assert.False(t, d.Allowed)
}

func sameShardKey(t *testing.T, key string) string {
	t.Helper()
	want := xxhash.Sum64String(key) % shardCount
	for i := range 10000 {
		candidate := fmt.Sprintf("login|10.1.%d.%d", i/256, i%256)
		if xxhash.Sum64String(candidate)%shardCount == want {
			return candidate
		}
	}
	t.Fatal("no key found in the same shard")
	return ""
}

func TestMemoryStore_HorizonNeverShorterThanFullRefill(t *testing.T) {
	s := NewMemoryStore(Config{Capacity: 5, RefillInterval: time.Minute, IdleHorizon: time.Second}, nil)
	assert.Equal(t, 5*time.Minute, s.cfg.IdleHorizon)
}

func TestMemoryStore_ConcurrentTakesNeverExceedCapacity(t *testing.T) {
	c := clock.NewFixed(startTime())
	s := NewMemoryStore(Config{Capacity: 10, RefillInterval: time.Hour}, c)
	ctx := context.Background()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := s.Take(ctx, "login|shared")
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
			_, _ = s.Take(ctx, fmt.Sprintf("login|solo-%d", i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int64(10), allowed.Load())
}
