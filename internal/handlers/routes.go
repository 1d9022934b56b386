package handlers

import (
	"github.com/crm-electoral/app-crm/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers groups every handler set the API serves
type Handlers struct {
	Auth      *AuthHandlers
	Persons   *PersonHandlers
	Dashboard *DashboardHandlers
	Puestos   *PuestoHandlers
	Chat      *ChatHandlers
	Links     *LinkHandlers
	Admin     *AdminHandlers

	// Limiter throttles the public write endpoints per client. Nil disables it.
	Limiter middleware.Limiter
}

// RegisterRoutes mounts the API on the /v1 group. Login, self registration,
// reference data and health are public; everything else needs a session.
func RegisterRoutes(v1 *gin.RouterGroup, h *Handlers, auth middleware.Authenticator) {
	v1.GET("/health", HealthCheck)

	v1.POST("/auth/admin", middleware.RateLimit(h.Limiter, "admin_login"), h.Auth.AdminLogin)
	v1.POST("/auth/lider", middleware.RateLimit(h.Limiter, "leader_login"), h.Auth.LeaderLogin)
	v1.POST("/registro/:lider", middleware.RateLimit(h.Limiter, "self_register"), h.Persons.SelfRegister)

	v1.GET("/puestos/municipios", h.Puestos.Municipios)
	v1.GET("/puestos", h.Puestos.Puestos)
	v1.GET("/puestos/mesas", h.Puestos.Mesas)

	authed := v1.Group("")
	authed.Use(middleware.AuthMiddleware(auth))
	{
		authed.POST("/auth/logout", h.Auth.Logout)
		authed.GET("/auth/me", h.Auth.Me)

		authed.POST("/personas", h.Persons.Register)
		authed.GET("/personas", h.Persons.List)
		authed.GET("/personas/:cedula", h.Persons.Get)
		authed.PATCH("/personas/:cedula", h.Persons.Update)
		authed.PUT("/personas/:cedula/estado", middleware.RequireAdmin(), h.Persons.SetEstado)
		authed.POST("/personas/:cedula/promote", h.Persons.Promote)
		authed.GET("/personas/:cedula/team", h.Persons.Team)

		authed.GET("/dashboard", h.Dashboard.Summary)
		authed.GET("/dashboard/municipios", h.Dashboard.Municipios)
		authed.GET("/dashboard/mapa", h.Dashboard.Map)

		authed.POST("/chat/messages", h.Chat.Send)
		authed.GET("/chat/messages", h.Chat.List)
		authed.POST("/chat/read", h.Chat.MarkRead)
		authed.GET("/chat/unread", h.Chat.Unread)
		authed.GET("/chat/stream", h.Chat.Stream)

		authed.POST("/links/invite", h.Links.Invite)
		authed.POST("/links/notify/:cedula", h.Links.Notify)

		admin := authed.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.POST("/import", h.Admin.Import)
			admin.POST("/migrations/:name", h.Admin.Migrate)
			admin.POST("/codes", h.Admin.CreateAdminCode)
		}
	}
}
