package main

import (
	"path/filepath"
	"testing"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func withConfig(t *testing.T, cfg *config.Config) {
	t.Helper()
	previous := config.AppConfig
	config.AppConfig = cfg
	t.Cleanup(func() { config.AppConfig = previous })
}

func TestBuildHandlers_RateLimiter(t *testing.T) {
	logger := logging.NewSafeLogger(zap.NewNop())
	missingGeo := filepath.Join(t.TempDir(), "missing.geojson")

	t.Run("enabled", func(t *testing.T) {
		withConfig(t, &config.Config{LoginRateLimit: 1, GeoJSONPath: missingGeo, ChatChannel: "crm:chat"})

		h, auth, err := buildHandlers(logger)
		require.NoError(t, err)
		assert.NotNil(t, auth)
		require.NotNil(t, h.Limiter)

		ok, _ := h.Limiter.Allow("10.0.0.9", "leader_login")
		assert.True(t, ok)
		ok, _ = h.Limiter.Allow("10.0.0.9", "leader_login")
		assert.False(t, ok, "second request within the minute is throttled")
	})

	t.Run("disabled", func(t *testing.T) {
		withConfig(t, &config.Config{LoginRateLimit: 0, GeoJSONPath: missingGeo, ChatChannel: "crm:chat"})

		h, _, err := buildHandlers(logger)
		require.NoError(t, err)
		assert.Nil(t, h.Limiter)
	})
}
