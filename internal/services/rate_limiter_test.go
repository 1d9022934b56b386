package services

import (
	"testing"
	"time"

	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestRateLimiter(perMinute int) (*RateLimiter, *time.Time) {
	clock := time.Date(2026, 3, 8, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(perMinute, logging.NewSafeLogger(zap.NewNop()))
	rl.now = func() time.Time { return clock }
	return rl, &clock
}

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	rl, clock := newTestRateLimiter(3)

	for i := 0; i < 3; i++ {
		ok, _ := rl.Allow("10.0.0.1", "login")
		assert.True(t, ok, "request %d", i)
	}
	ok, wait := rl.Allow("10.0.0.1", "login")
	assert.False(t, ok)
	assert.Equal(t, 20*time.Second, wait)

	*clock = clock.Add(20 * time.Second)
	ok, _ = rl.Allow("10.0.0.1", "login")
	assert.True(t, ok)
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl, _ := newTestRateLimiter(1)

	ok, _ := rl.Allow("10.0.0.1", "login")
	assert.True(t, ok)
	ok, _ = rl.Allow("10.0.0.1", "login")
	assert.False(t, ok)

	ok, _ = rl.Allow("10.0.0.2", "login")
	assert.True(t, ok)
}

func TestRateLimiter_RefillIsCapped(t *testing.T) {
	rl, clock := newTestRateLimiter(2)

	rl.Allow("a", "login")
	*clock = clock.Add(time.Hour)

	allowed := 0
	for i := 0; i < 5; i++ {
		if ok, _ := rl.Allow("a", "login"); ok {
			allowed++
		}
	}
	assert.Equal(t, 2, allowed)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl, clock := newTestRateLimiter(5)

	rl.Allow("old", "login")
	*clock = clock.Add(2 * time.Hour)
	rl.Allow("new", "login")

	assert.Equal(t, 1, rl.Cleanup(time.Hour))
	assert.Equal(t, 1, rl.Size())
}
