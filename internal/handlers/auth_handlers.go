package handlers

import (
	"net/http"

	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/services"
	"github.com/gin-gonic/gin"
)

// AuthHandlers handles login, logout and the current session
type AuthHandlers struct {
	logger *logging.SafeLogger
	auth   *services.AuthService
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(logger *logging.SafeLogger, auth *services.AuthService) *AuthHandlers {
	return &AuthHandlers{logger: logger, auth: auth}
}

// AdminLogin godoc
// @Summary Ingreso de administrador
// @Description Abre una sesión de administrador con un código de acceso. Los códigos con rostro registrado exigen el descriptor facial calculado por el cliente.
// @Tags auth
// @Accept json
// @Produce json
// @Param login body models.AdminLoginRequest true "Código de acceso"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse "Código inválido o rostro no coincide"
// @Failure 429 {object} ErrorResponse "Demasiados intentos"
// @Router /auth/admin [post]
func (h *AuthHandlers) AdminLogin(c *gin.Context) {
	var req models.AdminLoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.auth.AdminLogin(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, "admin login", err)
		return
	}
	c.Set(models.IdentityContextKey, resp.Identity)
	c.JSON(http.StatusOK, resp)
}

// LeaderLogin godoc
// @Summary Ingreso de líder
// @Description Abre una sesión de líder con la cédula y, si tiene teléfono registrado, sus últimos 4 dígitos.
// @Tags auth
// @Accept json
// @Produce json
// @Param login body models.LeaderLoginRequest true "Cédula del líder"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse "Demasiados intentos"
// @Router /auth/lider [post]
func (h *AuthHandlers) LeaderLogin(c *gin.Context) {
	var req models.LeaderLoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.auth.LeaderLogin(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, "leader login", err)
		return
	}
	c.Set(models.IdentityContextKey, resp.Identity)
	c.JSON(http.StatusOK, resp)
}

// Logout godoc
// @Summary Cerrar sesión
// @Tags auth
// @Security ApiKeyAuth
// @Success 204 "Sesión cerrada"
// @Failure 401 {object} ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandlers) Logout(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	if err := h.auth.Logout(c.Request.Context(), identity); err != nil {
		respondError(c, h.logger, "logout", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me godoc
// @Summary Sesión actual
// @Description Devuelve la identidad asociada al token.
// @Tags auth
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.SessionIdentity
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandlers) Me(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, identity)
}
