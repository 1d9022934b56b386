package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/observability"
	"github.com/crm-electoral/app-crm/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxAuditBody = 64 << 10

// auditTarget is what a write request acted on
type auditTarget struct {
	action     string
	resource   string
	resourceID string
}

// AuditMiddleware records every successful write request in the audit log.
// JSON bodies are stored sanitized as the new value.
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != "POST" && method != "PUT" && method != "DELETE" && method != "PATCH" {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/v1/health") || strings.HasPrefix(path, "/metrics") {
			c.Next()
			return
		}

		var body interface{}
		if isJSON(c.ContentType()) && c.Request.Body != nil {
			raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAuditBody))
			if err == nil {
				c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), c.Request.Body))
				if len(raw) > 0 {
					_ = json.Unmarshal(raw, &body)
				}
			}
		}

		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		target := resolveAuditTarget(c, method, path, body)
		metadata := map[string]string{
			"endpoint":        path,
			"method":          method,
			"response_status": strconv.Itoa(status),
		}
		if c.Request.URL.RawQuery != "" {
			metadata["query_params"] = c.Request.URL.RawQuery
		}

		// The session of a login only exists once the handler ran
		auditCtx := utils.GetAuditContextFromGin(c)
		if err := utils.LogAuditEvent(c.Request.Context(), auditCtx, target.action, target.resource, target.resourceID, nil, body, metadata); err != nil {
			fields := []zap.Field{
				zap.Error(err),
				zap.String("endpoint", path),
				zap.String("method", method),
			}
			if m, ok := body.(map[string]interface{}); ok {
				fields = append(fields, zap.Any("body", observability.MaskSensitiveData(m)))
			}
			observability.Logger().Warn("failed to log audit event", fields...)
		}
	}
}

func isJSON(contentType string) bool {
	return contentType == "" || strings.HasSuffix(contentType, "json")
}

// resolveAuditTarget maps a write route to an audit action and resource
func resolveAuditTarget(c *gin.Context, method, path string, body interface{}) auditTarget {
	route := strings.TrimPrefix(c.FullPath(), "/v1/")
	if route == "" {
		route = strings.TrimPrefix(path, "/v1/")
	}

	switch {
	case strings.HasPrefix(route, "auth/logout"):
		return auditTarget{action: utils.AuditActionLogout, resource: utils.AuditResourceSession}
	case strings.HasPrefix(route, "auth/"):
		return auditTarget{action: utils.AuditActionLogin, resource: utils.AuditResourceSession, resourceID: bodyString(body, "cedula")}
	case strings.HasPrefix(route, "registro/"):
		return auditTarget{action: utils.AuditActionCreate, resource: utils.AuditResourcePersona, resourceID: bodyString(body, "cedula")}
	case strings.HasSuffix(route, "/estado"):
		action := utils.AuditActionUpdate
		switch models.Estado(strings.ToUpper(bodyString(body, "estado"))) {
		case models.EstadoAprobado:
			action = utils.AuditActionApprove
		case models.EstadoRechazado:
			action = utils.AuditActionReject
		}
		return auditTarget{action: action, resource: utils.AuditResourcePersona, resourceID: c.Param("cedula")}
	case strings.HasSuffix(route, "/promote"):
		return auditTarget{action: utils.AuditActionPromote, resource: utils.AuditResourceEquipo, resourceID: c.Param("cedula")}
	case strings.HasPrefix(route, "personas"):
		id := c.Param("cedula")
		if id == "" {
			id = bodyString(body, "cedula")
		}
		return auditTarget{action: mapHTTPMethodToAction(method), resource: utils.AuditResourcePersona, resourceID: id}
	case strings.HasPrefix(route, "admin/import"):
		return auditTarget{action: utils.AuditActionImport, resource: utils.AuditResourceImport}
	case strings.HasPrefix(route, "admin/migrations"):
		return auditTarget{action: utils.AuditActionMigrate, resource: utils.AuditResourceMigration, resourceID: c.Param("name")}
	case strings.HasPrefix(route, "admin/codes"):
		return auditTarget{action: utils.AuditActionCreate, resource: utils.AuditResourceAdminCode, resourceID: bodyString(body, "label")}
	case strings.HasPrefix(route, "chat/"):
		return auditTarget{action: mapHTTPMethodToAction(method), resource: utils.AuditResourceChat, resourceID: bodyString(body, "cedula_lider")}
	case strings.HasPrefix(route, "links/"):
		id := c.Param("cedula")
		if id == "" {
			id = bodyString(body, "cedula_lider")
		}
		return auditTarget{action: utils.AuditActionCreate, resource: utils.AuditResourceLink, resourceID: id}
	}

	parts := strings.Split(route, "/")
	return auditTarget{action: mapHTTPMethodToAction(method), resource: parts[0]}
}

func mapHTTPMethodToAction(method string) string {
	if method == "POST" {
		return utils.AuditActionCreate
	}
	return utils.AuditActionUpdate
}

func bodyString(body interface{}, key string) string {
	m, ok := body.(map[string]interface{})
	if !ok {
		return ""
	}
	v, _ := m[key].(string)
	return v
}
