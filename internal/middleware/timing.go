package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RequestTiming opens a span covering the whole request and exposes the
// start time to handlers as "request_start_time"
func RequestTiming() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set("request_start_time", start)

		ctx, span := otel.Tracer("http").Start(c.Request.Context(), "http.request")
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.url", c.Request.URL.Path),
			attribute.String("http.route", c.FullPath()),
			attribute.String("http.user_agent", c.Request.UserAgent()),
			attribute.String("http.client_ip", c.ClientIP()),
		)
		if requestID := c.GetString("request_id"); requestID != "" {
			span.SetAttributes(attribute.String("http.request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.Int64("http.duration_ms", time.Since(start).Milliseconds()),
		)
		if identity, err := IdentityFrom(c); err == nil {
			span.SetAttributes(attribute.String("crm.session_role", string(identity.Role)))
		}
		if status >= 500 {
			span.SetStatus(codes.Error, "server error")
		} else if status >= 400 {
			span.SetAttributes(attribute.String("http.error", "true"))
		}
	}
}
