package middleware

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/observability"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrNoIdentity is returned when a handler runs without an authenticated session
var ErrNoIdentity = errors.New("identity not found in context")

// Authenticator resolves a bearer token to the caller's identity
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.SessionIdentity, error)
}

// AuthMiddleware validates the bearer token against the session store and
// stores the resolved identity in the gin context
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		identity, err := auth.Authenticate(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			if !errors.Is(err, models.ErrSessionNotFound) {
				observability.Logger().Error("failed to authenticate session", zap.Error(err))
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": models.ErrSessionNotFound.Error()})
			c.Abort()
			return
		}

		c.Set(models.IdentityContextKey, identity)
		c.Next()
	}
}

// RequireAdmin rejects callers whose session is not an admin session
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := IdentityFrom(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session not found"})
			c.Abort()
			return
		}
		if !identity.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin privileges required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the identity stored by AuthMiddleware
func IdentityFrom(c *gin.Context) (models.SessionIdentity, error) {
	value, exists := c.Get(models.IdentityContextKey)
	if !exists {
		return models.SessionIdentity{}, ErrNoIdentity
	}
	identity, ok := value.(models.SessionIdentity)
	if !ok {
		return models.SessionIdentity{}, ErrNoIdentity
	}
	return identity, nil
}

// Limiter takes a token for a client key
type Limiter interface {
	Allow(key, operation string) (bool, time.Duration)
}

// RateLimit rejects clients that exceed limiter with 429. A nil limiter
// lets every request through.
func RateLimit(limiter Limiter, operation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		if ok, wait := limiter.Allow(c.ClientIP(), operation); !ok {
			seconds := int(math.Ceil(wait.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Demasiados intentos, intente más tarde"})
			return
		}
		c.Next()
	}
}
