package handlers

import (
	"errors"
	"net/http"

	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxImportFileSize = 10 << 20

// AdminHandlers handles bulk maintenance operations
type AdminHandlers struct {
	logger     *logging.SafeLogger
	imports    *services.ImportService
	migrations *services.MigrationService
	auth       *services.AuthService
}

// NewAdminHandlers creates a new admin handlers instance
func NewAdminHandlers(logger *logging.SafeLogger, imports *services.ImportService, migrations *services.MigrationService, auth *services.AuthService) *AdminHandlers {
	return &AdminHandlers{logger: logger, imports: imports, migrations: migrations, auth: auth}
}

// Import godoc
// @Summary Importar planilla
// @Description Importa un CSV (separado por coma o punto y coma). Los encabezados se reconocen por alias; cedula y nombre son obligatorios. Las filas se actualizan por cédula.
// @Tags admin
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param file formData file true "Archivo CSV"
// @Success 200 {object} models.ImportResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Router /admin/import [post]
func (h *AdminHandlers) Import(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportFileSize)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "El archivo supera el tamaño máximo permitido"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Se requiere el archivo en el campo file"})
		return
	}
	file, err := header.Open()
	if err != nil {
		respondError(c, h.logger, "open import file", err)
		return
	}
	defer file.Close()

	result, err := h.imports.Import(c.Request.Context(), identity, file)
	if err != nil {
		respondError(c, h.logger, "import", err)
		return
	}
	h.logger.Info("import finished",
		zap.String("file", header.Filename),
		zap.Int("rows", result.Rows),
		zap.Int("failed", result.Failed))
	c.JSON(http.StatusOK, result)
}

// Migrate godoc
// @Summary Ejecutar migración
// @Description Ejecuta una migración de datos: estados recalcula estado y vota_en_bello; lideres normaliza las referencias a líderes.
// @Tags admin
// @Produce json
// @Security ApiKeyAuth
// @Param name path string true "estados o lideres"
// @Success 200 {object} models.MigrationResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /admin/migrations/{name} [post]
func (h *AdminHandlers) Migrate(c *gin.Context) {
	result, err := h.migrations.Run(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, h.logger, "migration", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateAdminCode godoc
// @Summary Registrar código de acceso
// @Description Registra un código de administrador. Si se envía face_descriptor, el ingreso con ese código exige verificación facial.
// @Tags admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param codigo body models.AdminCodeRequest true "Código"
// @Success 201 {object} models.AdminCode
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /admin/codes [post]
func (h *AdminHandlers) CreateAdminCode(c *gin.Context) {
	var req models.AdminCodeRequest
	if !bindJSON(c, &req) {
		return
	}
	code, err := h.auth.CreateAdminCode(c.Request.Context(), req.Label, req.Code, req.FaceDescriptor)
	if err != nil {
		respondError(c, h.logger, "create admin code", err)
		return
	}
	c.JSON(http.StatusCreated, code)
}
