package handlers

import (
	"net/http"

	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/services"
	"github.com/gin-gonic/gin"
)

// PersonHandlers handles registration, edits and team views
type PersonHandlers struct {
	logger    *logging.SafeLogger
	persons   *services.PersonService
	promotion *services.PromotionService
}

// NewPersonHandlers creates a new person handlers instance
func NewPersonHandlers(logger *logging.SafeLogger, persons *services.PersonService, promotion *services.PromotionService) *PersonHandlers {
	return &PersonHandlers{logger: logger, persons: persons, promotion: promotion}
}

// Register godoc
// @Summary Registrar persona
// @Description Registra una persona. Los líderes solo registran integrantes de su propio equipo; el administrador puede registrar líderes.
// @Tags personas
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param persona body models.PersonInput true "Datos de la persona"
// @Success 201 {object} models.Person
// @Failure 400 {object} ValidationErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Líder no encontrado"
// @Failure 409 {object} ErrorResponse "Cédula duplicada o equipo completo"
// @Router /personas [post]
func (h *PersonHandlers) Register(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	var input models.PersonInput
	if !bindJSON(c, &input) {
		return
	}

	person, err := h.persons.Register(c.Request.Context(), identity, input)
	if err != nil {
		respondError(c, h.logger, "register person", err)
		return
	}
	c.JSON(http.StatusCreated, person)
}

// SelfRegister godoc
// @Summary Autorregistro por invitación
// @Description Formulario público enlazado desde la invitación de un líder. Solo admite los roles asociado e impulsor.
// @Tags personas
// @Accept json
// @Produce json
// @Param lider path string true "Cédula del líder que invita"
// @Param persona body models.PersonInput true "Datos de la persona"
// @Success 201 {object} models.Person
// @Failure 400 {object} ValidationErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse "Demasiados intentos"
// @Router /registro/{lider} [post]
func (h *PersonHandlers) SelfRegister(c *gin.Context) {
	var input models.PersonInput
	if !bindJSON(c, &input) {
		return
	}

	person, err := h.persons.SelfRegister(c.Request.Context(), c.Param("lider"), input)
	if err != nil {
		respondError(c, h.logger, "self register", err)
		return
	}
	c.JSON(http.StatusCreated, person)
}

// List godoc
// @Summary Listar personas
// @Description Lista paginada. Los líderes solo ven su equipo.
// @Tags personas
// @Produce json
// @Security ApiKeyAuth
// @Param rol query string false "lider, asociado o impulsor"
// @Param estado query string false "PENDIENTE, APROBADO o RECHAZADO"
// @Param municipio query string false "Municipio de votación"
// @Param cedula_lider query string false "Equipo de un líder"
// @Param q query string false "Búsqueda por nombre o cédula"
// @Param page query int false "Página (por defecto 1)"
// @Param per_page query int false "Elementos por página (por defecto 10, máximo 100)"
// @Success 200 {object} models.PersonListResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /personas [get]
func (h *PersonHandlers) List(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}

	page, perPage, err := services.ValidatePaginationParams(c.Query("page"), c.Query("per_page"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	filter := services.PersonFilter{
		Rol:         models.Rol(c.Query("rol")),
		Estado:      models.Estado(c.Query("estado")),
		Municipio:   c.Query("municipio"),
		CedulaLider: c.Query("cedula_lider"),
		Search:      c.Query("q"),
	}
	list, err := h.persons.List(c.Request.Context(), identity, filter, page, perPage)
	if err != nil {
		respondError(c, h.logger, "list persons", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get godoc
// @Summary Obtener persona
// @Tags personas
// @Produce json
// @Security ApiKeyAuth
// @Param cedula path string true "Cédula"
// @Success 200 {object} models.Person
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /personas/{cedula} [get]
func (h *PersonHandlers) Get(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	person, err := h.persons.Get(c.Request.Context(), identity, c.Param("cedula"))
	if err != nil {
		respondError(c, h.logger, "get person", err)
		return
	}
	c.JSON(http.StatusOK, person)
}

// Update godoc
// @Summary Editar persona
// @Description Edita los campos enviados. La cédula no se puede cambiar. Cambiar el rol a lider promueve a la persona con los integrantes de assigned_cedulas.
// @Tags personas
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param cedula path string true "Cédula"
// @Param cambios body models.PersonPatch true "Campos a modificar"
// @Success 200 {object} models.Person
// @Failure 400 {object} ValidationErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /personas/{cedula} [patch]
func (h *PersonHandlers) Update(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	var patch models.PersonPatch
	if !bindJSON(c, &patch) {
		return
	}

	person, err := h.persons.Update(c.Request.Context(), identity, c.Param("cedula"), patch)
	if err != nil {
		respondError(c, h.logger, "update person", err)
		return
	}
	c.JSON(http.StatusOK, person)
}

// SetEstado godoc
// @Summary Aprobar o rechazar
// @Description Fija el estado de una persona (solo administradores).
// @Tags personas
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param cedula path string true "Cédula"
// @Param estado body models.EstadoRequest true "Nuevo estado"
// @Success 200 {object} models.Person
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /personas/{cedula}/estado [put]
func (h *PersonHandlers) SetEstado(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	var req models.EstadoRequest
	if !bindJSON(c, &req) {
		return
	}

	person, err := h.persons.SetEstado(c.Request.Context(), identity, c.Param("cedula"), req)
	if err != nil {
		respondError(c, h.logger, "set estado", err)
		return
	}
	c.JSON(http.StatusOK, person)
}

// Promote godoc
// @Summary Promover a líder
// @Description Convierte a la persona en líder y le asigna como equipo las cédulas indicadas, de forma atómica.
// @Tags personas
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param cedula path string true "Cédula"
// @Param equipo body models.PromoteRequest true "Integrantes asignados"
// @Success 200 {object} models.TeamResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /personas/{cedula}/promote [post]
func (h *PersonHandlers) Promote(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	var req models.PromoteRequest
	if !bindJSON(c, &req) {
		return
	}

	team, err := h.promotion.PromoteToLeader(c.Request.Context(), identity, c.Param("cedula"), req.AssignedCedulas)
	if err != nil {
		respondError(c, h.logger, "promote to leader", err)
		return
	}
	c.JSON(http.StatusOK, team)
}

// Team godoc
// @Summary Equipo de un líder
// @Tags personas
// @Produce json
// @Security ApiKeyAuth
// @Param cedula path string true "Cédula del líder"
// @Success 200 {object} models.TeamResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /personas/{cedula}/team [get]
func (h *PersonHandlers) Team(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	team, err := h.persons.Team(c.Request.Context(), identity, c.Param("cedula"))
	if err != nil {
		respondError(c, h.logger, "get team", err)
		return
	}
	c.JSON(http.StatusOK, team)
}
