package handlers

import (
	"net/http"

	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/services"
	"github.com/gin-gonic/gin"
)

// LinkHandlers builds WhatsApp links for invitations and notifications
type LinkHandlers struct {
	logger *logging.SafeLogger
	links  *services.LinkService
}

// NewLinkHandlers creates a new link handlers instance
func NewLinkHandlers(logger *logging.SafeLogger, links *services.LinkService) *LinkHandlers {
	return &LinkHandlers{logger: logger, links: links}
}

// Invite godoc
// @Summary Enlace de invitación
// @Description Arma un enlace wa.me con la invitación al formulario de autorregistro del líder. El administrador debe indicar cedula_lider.
// @Tags links
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param invitacion body models.InviteLinkRequest true "Destinatario"
// @Success 200 {object} models.LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /links/invite [post]
func (h *LinkHandlers) Invite(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	var req models.InviteLinkRequest
	if !bindJSON(c, &req) {
		return
	}
	link, err := h.links.Invite(c.Request.Context(), identity, req)
	if err != nil {
		respondError(c, h.logger, "invite link", err)
		return
	}
	c.JSON(http.StatusOK, link)
}

// Notify godoc
// @Summary Enlace de notificación
// @Description Arma un enlace wa.me que informa a la persona su estado actual.
// @Tags links
// @Produce json
// @Security ApiKeyAuth
// @Param cedula path string true "Cédula"
// @Success 200 {object} models.LinkResponse
// @Failure 400 {object} ErrorResponse "La persona no tiene teléfono válido"
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /links/notify/{cedula} [post]
func (h *LinkHandlers) Notify(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	link, err := h.links.Notify(c.Request.Context(), identity, c.Param("cedula"))
	if err != nil {
		respondError(c, h.logger, "notify link", err)
		return
	}
	c.JSON(http.StatusOK, link)
}
