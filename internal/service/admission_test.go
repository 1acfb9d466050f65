package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/target/gatekeeper/internal/adapters/ratelimit"
	"github.com/target/gatekeeper/internal/clock"
	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	"github.com/target/gatekeeper/internal/mocks"
	"go.uber.org/mock/gomock"
)

func TestAdmissionController_CapacityAndRefill(t *testing.T) {
	c := clock.NewFixed(time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC))
	store := ratelimit.NewMemoryStore(ratelimit.Config{Capacity: 5, RefillInterval: time.Second}, c)
	ac := NewAdmissionController(AdmissionControllerOptions{Store: store})
	ctx := context.Background()

	for i := range 5 {
		assert.True(t, ac.Check(ctx, "POST /login", "192.0.2.7").Allowed, "call %d", i+1)
	}
	d := ac.Check(ctx, "POST /login", "192.0.2.7")
	assert.False(t, d.Allowed)
	assert.Positive(t, d.RetryAfter)

	c.Advance(time.Second)
	assert.True(t, ac.Check(ctx, "POST /login", "192.0.2.7").Allowed)
	assert.False(t, ac.Check(ctx, "POST /login", "192.0.2.7").Allowed)
}

func TestAdmissionController_NamespacesAreSeparate(t *testing.T) {
	c := clock.NewFixed(time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC))
	store := ratelimit.NewMemoryStore(ratelimit.Config{Capacity: 1, RefillInterval: time.Minute}, c)
	ac := NewAdmissionController(AdmissionControllerOptions{Store: store})
	ctx := context.Background()

	assert.True(t, ac.Check(ctx, "POST /login", "192.0.2.7").Allowed)
	assert.False(t, ac.Check(ctx, "POST /login", "192.0.2.7").Allowed)
	assert.True(t, ac.Check(ctx, "POST /password-reset", "192.0.2.7").Allowed)
}

func TestAdmissionController_StoreErrorAdmits(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockAdmissionStore(ctrl)
	ac := NewAdmissionController(AdmissionControllerOptions{Store: store})

	store.EXPECT().Take(gomock.Any(), "POST /login|198.51.100.1").Return(domainauth.Decision{}, errors.New("redis down"))

	assert.True(t, ac.Check(context.Background(), "POST /login", "198.51.100.1").Allowed)
}

func TestBucketKey(t *testing.T) {
	assert.Equal(t, "POST /login|10.0.0.1", BucketKey("POST /login", "10.0.0.1"))
	assert.Equal(t, "POST /login|unknown", BucketKey("POST /login", ""))
}
