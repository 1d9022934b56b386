package services

import (
	"sync"
	"time"

	"github.com/crm-electoral/app-crm/internal/logging"
	"go.uber.org/zap"
)

// bucket is the token state of one caller
type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter is a token bucket per key (client address). It guards the
// public login and self registration endpoints against guessing.
type RateLimiter struct {
	maxTokens float64
	perToken  time.Duration
	buckets   map[string]*bucket
	mutex     sync.Mutex
	now       func() time.Time
	logger    *logging.SafeLogger
}

// NewRateLimiter allows perMinute requests per key, refilled evenly over the
// minute. A burst of perMinute is allowed from a fresh key.
func NewRateLimiter(perMinute int, logger *logging.SafeLogger) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &RateLimiter{
		maxTokens: float64(perMinute),
		perToken:  time.Minute / time.Duration(perMinute),
		buckets:   make(map[string]*bucket),
		now:       time.Now,
		logger:    logger,
	}
}

// Allow takes a token for key. When the bucket is empty it returns false and
// how long until the next token.
func (rl *RateLimiter) Allow(key, operation string) (bool, time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.maxTokens, lastSeen: now}
		rl.buckets[key] = b
	}

	b.tokens += float64(now.Sub(b.lastSeen)) / float64(rl.perToken)
	if b.tokens > rl.maxTokens {
		b.tokens = rl.maxTokens
	}
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	wait := time.Duration((1 - b.tokens) * float64(rl.perToken))
	rl.logger.Warn("rate limit exceeded",
		zap.String("operation", operation),
		zap.String("client", key),
		zap.Duration("retry_after", wait))
	return false, wait
}

// Cleanup forgets keys idle for longer than olderThan
func (rl *RateLimiter) Cleanup(olderThan time.Duration) int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cutoff := rl.now().Add(-olderThan)
	removed := 0
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked keys
func (rl *RateLimiter) Size() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return len(rl.buckets)
}

// StartCleanup drops idle keys every interval until stop is closed
func (rl *RateLimiter) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := rl.Cleanup(interval); removed > 0 {
					rl.logger.Debug("rate limiter keys expired", zap.Int("removed", removed))
				}
			case <-stop:
				return
			}
		}
	}()
}
