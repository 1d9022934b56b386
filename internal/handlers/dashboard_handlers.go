package handlers

import (
	"net/http"

	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/services"
	"github.com/gin-gonic/gin"
)

// DashboardHandlers serves the aggregated views
type DashboardHandlers struct {
	logger    *logging.SafeLogger
	dashboard *services.DashboardService
}

// NewDashboardHandlers creates a new dashboard handlers instance
func NewDashboardHandlers(logger *logging.SafeLogger, dashboard *services.DashboardService) *DashboardHandlers {
	return &DashboardHandlers{logger: logger, dashboard: dashboard}
}

// Summary godoc
// @Summary Resumen del tablero
// @Description Totales por estado y rol, votantes en el municipio principal y distribución por municipio. El administrador ve toda la base; un líder ve su equipo.
// @Tags dashboard
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.DashboardSummary
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /dashboard [get]
func (h *DashboardHandlers) Summary(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	summary, err := h.dashboard.Summary(c.Request.Context(), identity)
	if err != nil {
		respondError(c, h.logger, "dashboard summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Municipios godoc
// @Summary Distribución por municipio
// @Description Cantidad y porcentaje de registrados por municipio del puesto, de mayor a menor.
// @Tags dashboard
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} models.MunicipalityCount
// @Failure 401 {object} ErrorResponse
// @Router /dashboard/municipios [get]
func (h *DashboardHandlers) Municipios(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	counts, err := h.dashboard.Municipios(c.Request.Context(), identity)
	if err != nil {
		respondError(c, h.logger, "dashboard municipios", err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// Map godoc
// @Summary Mapa por municipio
// @Description GeoJSON de los municipios con las propiedades count y percentage.
// @Tags dashboard
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} object
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /dashboard/mapa [get]
func (h *DashboardHandlers) Map(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	fc, err := h.dashboard.Map(c.Request.Context(), identity)
	if err != nil {
		respondError(c, h.logger, "dashboard map", err)
		return
	}
	c.JSON(http.StatusOK, fc)
}
