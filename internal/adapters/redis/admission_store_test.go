package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/gatekeeper/internal/testutil"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func TestAdmissionStore_CapacityThenThrottle(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewAdmissionStore(client, AdmissionStoreOptions{
		Capacity:       5,
		RefillInterval: time.Minute,
		Prefix:         "test-admission:" + uuid.NewString() + ":",
	})
	ctx := context.Background()

	for i := range 5 {
		d, err := store.Take(ctx, "login|10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i+1)
	}

	d, err := store.Take(ctx, "login|10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	d, err = store.Take(ctx, "login|10.0.0.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestAdmissionStore_Refills(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewAdmissionStore(client, AdmissionStoreOptions{
		Capacity:       1,
		RefillInterval: 100 * time.Millisecond,
		Prefix:         "test-admission:" + uuid.NewString() + ":",
	})
	ctx := context.Background()

	d, err := store.Take(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = store.Take(ctx, "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	time.Sleep(150 * time.Millisecond)
	d, err = store.Take(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestAdmissionStore_KeyExpiresAfterIdleHorizon(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	prefix := "test-admission:" + uuid.NewString() + ":"
	store := NewAdmissionStore(client, AdmissionStoreOptions{
		Capacity:       2,
		RefillInterval: time.Second,
		IdleHorizon:    30 * time.Second,
		Prefix:         prefix,
	})
	ctx := context.Background()

	_, err := store.Take(ctx, "k")
	require.NoError(t, err)

	ttl := client.PTTL(ctx, prefix+"k").Val()
	assert.Greater(t, ttl, 25*time.Second)
	assert.LessOrEqual(t, ttl, 30*time.Second)
}

func TestAdmissionStore_EmptyKey(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	_, err := NewAdmissionStore(client, AdmissionStoreOptions{}).Take(context.Background(), "")
	require.Error(t, err)
}
