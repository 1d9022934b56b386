package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/observability"
	"github.com/crm-electoral/app-crm/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthPingTimeout = 2 * time.Second

// HealthCheck godoc
// @Summary Verificación de salud
// @Description Verifica la API y sus dependencias (MongoDB y Redis). Redis solo degrada el servicio.
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse "Servicios disponibles"
// @Failure 503 {object} HealthResponse "MongoDB no disponible"
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	ctx, span, done := utils.TraceOperation(c.Request.Context(), "health.check", nil)
	defer done()

	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Services:  make(map[string]string),
	}

	if config.MongoDB == nil {
		health.Status = "unhealthy"
		health.Services["mongodb"] = "not configured"
	} else if err := config.MongoDB.Client().Ping(ctx, nil); err != nil {
		utils.RecordErrorInSpan(span, err, map[string]interface{}{"service.name": "mongodb"})
		observability.Logger().Warn("mongodb health check failed", zap.Error(err))
		health.Status = "unhealthy"
		health.Services["mongodb"] = "unhealthy"
	} else {
		health.Services["mongodb"] = "healthy"
	}

	// Without Redis the API still serves requests, uncached
	if config.Redis == nil {
		health.Services["redis"] = "not configured"
	} else if err := config.Redis.Ping(ctx).Err(); err != nil {
		utils.RecordErrorInSpan(span, err, map[string]interface{}{"service.name": "redis"})
		observability.Logger().Warn("redis health check failed", zap.Error(err))
		health.Services["redis"] = "unhealthy"
		if health.Status == "healthy" {
			health.Status = "degraded"
		}
	} else {
		health.Services["redis"] = "healthy"
	}

	if health.Status == "unhealthy" {
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	c.JSON(http.StatusOK, health)
}
