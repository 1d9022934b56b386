package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const streamKeepAlive = 25 * time.Second

// ChatHandlers handles the leader and admin conversations
type ChatHandlers struct {
	logger *logging.SafeLogger
	chat   *services.ChatService
}

// NewChatHandlers creates a new chat handlers instance
func NewChatHandlers(logger *logging.SafeLogger, chat *services.ChatService) *ChatHandlers {
	return &ChatHandlers{logger: logger, chat: chat}
}

// Send godoc
// @Summary Enviar mensaje
// @Description Un líder escribe a la coordinación; el administrador responde indicando cedula_lider.
// @Tags chat
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param mensaje body models.ChatSendRequest true "Mensaje"
// @Success 201 {object} models.ChatMessage
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /chat/messages [post]
func (h *ChatHandlers) Send(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	var req models.ChatSendRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.chat.Send(c.Request.Context(), identity, req)
	if err != nil {
		respondError(c, h.logger, "send chat message", err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// List godoc
// @Summary Conversación
// @Description Mensajes de una conversación, del más antiguo al más reciente.
// @Tags chat
// @Produce json
// @Security ApiKeyAuth
// @Param cedula_lider query string false "Conversación (obligatorio para el administrador)"
// @Param limit query int false "Máximo de mensajes (por defecto 200)"
// @Success 200 {array} models.ChatMessage
// @Failure 400 {object} ErrorResponse
// @Router /chat/messages [get]
func (h *ChatHandlers) List(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit debe ser un entero positivo"})
			return
		}
		limit = n
	}
	messages, err := h.chat.List(c.Request.Context(), identity, c.Query("cedula_lider"), limit)
	if err != nil {
		respondError(c, h.logger, "list chat messages", err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// MarkRead godoc
// @Summary Marcar como leídos
// @Description Marca como leídos los mensajes recibidos en la conversación.
// @Tags chat
// @Produce json
// @Security ApiKeyAuth
// @Param cedula_lider query string false "Conversación (obligatorio para el administrador)"
// @Success 200 {object} CountResponse
// @Failure 400 {object} ErrorResponse
// @Router /chat/read [post]
func (h *ChatHandlers) MarkRead(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	n, err := h.chat.MarkRead(c.Request.Context(), identity, c.Query("cedula_lider"))
	if err != nil {
		respondError(c, h.logger, "mark chat read", err)
		return
	}
	c.JSON(http.StatusOK, CountResponse{Count: n})
}

// Unread godoc
// @Summary Mensajes sin leer
// @Tags chat
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.UnreadResponse
// @Router /chat/unread [get]
func (h *ChatHandlers) Unread(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	n, err := h.chat.Unread(c.Request.Context(), identity)
	if err != nil {
		respondError(c, h.logger, "count unread", err)
		return
	}
	c.JSON(http.StatusOK, models.UnreadResponse{Unread: n})
}

// Stream godoc
// @Summary Mensajes en vivo
// @Description Server-sent events con cada mensaje nuevo visible para la sesión. Solo avisa al cliente que debe refrescar.
// @Tags chat
// @Produce text/event-stream
// @Security ApiKeyAuth
// @Success 200 {object} models.ChatMessage
// @Failure 503 {object} ErrorResponse
// @Router /chat/stream [get]
func (h *ChatHandlers) Stream(c *gin.Context) {
	identity, ok := sessionIdentity(c)
	if !ok {
		return
	}
	messages, err := h.chat.Subscribe(c.Request.Context(), identity)
	if err != nil {
		respondError(c, h.logger, "subscribe chat", err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()

	h.logger.Debug("chat stream opened", zap.String("role", string(identity.Role)))
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-messages:
			if !ok {
				return false
			}
			c.SSEvent("message", msg)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
