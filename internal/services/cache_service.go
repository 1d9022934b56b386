package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/observability"
	"github.com/crm-electoral/app-crm/internal/redisclient"
	"github.com/crm-electoral/app-crm/internal/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	sessionKeyPrefix   = "session:"
	dashboardKeyPrefix = "dashboard:"
	dashboardAdminKey  = dashboardKeyPrefix + "admin"
)

// CacheService stores JSON values in Redis. A nil Redis client turns every
// call into a miss so the API keeps working without a cache.
type CacheService struct {
	redis  *redisclient.Client
	logger *logging.SafeLogger
}

// NewCacheService creates a new cache service
func NewCacheService(redis *redisclient.Client, logger *logging.SafeLogger) *CacheService {
	return &CacheService{redis: redis, logger: logger}
}

// GetJSON loads key into dest and reports whether it was found
func (s *CacheService) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	if s == nil || s.redis == nil {
		return false
	}

	raw, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		observability.CacheHits.WithLabelValues("miss").Inc()
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn("cache entry is not valid JSON", zap.String("key", key), zap.Error(err))
		return false
	}

	observability.CacheHits.WithLabelValues("hit").Inc()
	return true
}

// SetJSON stores value under key for ttl
func (s *CacheService) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s == nil || s.redis == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.redis.Set(ctx, key, raw, ttl).Err(); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes keys from the cache
func (s *CacheService) Delete(ctx context.Context, keys ...string) {
	if s == nil || s.redis == nil || len(keys) == 0 {
		return
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// InvalidateDashboards drops the admin dashboard and the dashboards of the
// given leaders. Empty cedulas are ignored.
func (s *CacheService) InvalidateDashboards(ctx context.Context, leaders ...string) {
	ctx, _, done := utils.TraceCacheOperation(ctx, "invalidate", dashboardKeyPrefix)
	defer done()

	keys := []string{dashboardAdminKey}
	seen := map[string]bool{}
	for _, cedula := range leaders {
		if cedula == "" || seen[cedula] {
			continue
		}
		seen[cedula] = true
		keys = append(keys, dashboardLeaderKey(cedula))
	}
	s.Delete(ctx, keys...)
}

func dashboardLeaderKey(cedula string) string {
	return dashboardKeyPrefix + "lider:" + cedula
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
