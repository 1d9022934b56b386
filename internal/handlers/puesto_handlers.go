package handlers

import (
	"net/http"

	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/services"
	"github.com/gin-gonic/gin"
)

// PuestoHandlers serves the reference data behind the location dropdowns
type PuestoHandlers struct {
	logger  *logging.SafeLogger
	puestos *services.PuestoService
}

// NewPuestoHandlers creates a new puesto handlers instance
func NewPuestoHandlers(logger *logging.SafeLogger, puestos *services.PuestoService) *PuestoHandlers {
	return &PuestoHandlers{logger: logger, puestos: puestos}
}

// Municipios godoc
// @Summary Municipios de Antioquia
// @Description Lista de los municipios para los desplegables, con la opción "No Se" al final. Con con_puestos=true solo devuelve los municipios que tienen puestos cargados.
// @Tags puestos
// @Produce json
// @Param con_puestos query bool false "Solo municipios con puestos cargados"
// @Success 200 {array} string
// @Router /puestos/municipios [get]
func (h *PuestoHandlers) Municipios(c *gin.Context) {
	if c.Query("con_puestos") != "true" {
		c.JSON(http.StatusOK, h.puestos.Municipios())
		return
	}
	municipios, err := h.puestos.PuestoMunicipios(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "list puesto municipios", err)
		return
	}
	c.JSON(http.StatusOK, municipios)
}

// Puestos godoc
// @Summary Puestos de votación
// @Description Puestos de un municipio. El nombre del municipio se compara sin tildes ni mayúsculas.
// @Tags puestos
// @Produce json
// @Param municipio query string true "Municipio"
// @Success 200 {array} models.PuestoVotacion
// @Failure 400 {object} ErrorResponse
// @Router /puestos [get]
func (h *PuestoHandlers) Puestos(c *gin.Context) {
	municipio := c.Query("municipio")
	if municipio == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "El municipio es obligatorio"})
		return
	}
	puestos, err := h.puestos.Puestos(c.Request.Context(), municipio)
	if err != nil {
		respondError(c, h.logger, "list puestos", err)
		return
	}
	c.JSON(http.StatusOK, puestos)
}

// Mesas godoc
// @Summary Mesas de un puesto
// @Tags puestos
// @Produce json
// @Param municipio query string true "Municipio"
// @Param puesto query string true "Puesto de votación"
// @Success 200 {array} string
// @Failure 400 {object} ErrorResponse
// @Router /puestos/mesas [get]
func (h *PuestoHandlers) Mesas(c *gin.Context) {
	municipio, puesto := c.Query("municipio"), c.Query("puesto")
	if municipio == "" || puesto == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "El municipio y el puesto son obligatorios"})
		return
	}
	mesas, err := h.puestos.Mesas(c.Request.Context(), municipio, puesto)
	if err != nil {
		respondError(c, h.logger, "list mesas", err)
		return
	}
	c.JSON(http.StatusOK, mesas)
}
