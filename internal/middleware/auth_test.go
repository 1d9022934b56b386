package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuthenticator map[string]models.SessionIdentity

func (f fakeAuthenticator) Authenticate(_ context.Context, token string) (models.SessionIdentity, error) {
	if token == "broken" {
		return models.SessionIdentity{}, errors.New("mongo unavailable")
	}
	identity, ok := f[token]
	if !ok {
		return models.SessionIdentity{}, models.ErrSessionNotFound
	}
	return identity, nil
}

var testSessions = fakeAuthenticator{
	"admin-token": {SessionID: "s-1", Nombre: "Coordinación", Role: models.SessionAdmin},
	"lider-token": {SessionID: "s-2", Cedula: "71000001", Nombre: "Laura Gómez", Role: models.SessionLider},
}

func newAuthRouter() *gin.Engine {
	router := gin.New()
	router.Use(AuthMiddleware(testSessions))
	router.GET("/me", func(c *gin.Context) {
		identity, err := IdentityFrom(c)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, identity)
	})
	router.GET("/admin", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func serve(router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	router := newAuthRouter()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid leader session", header: "Bearer lider-token", want: http.StatusOK},
		{name: "lower case scheme", header: "bearer admin-token", want: http.StatusOK},
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", want: http.StatusUnauthorized},
		{name: "unknown session", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "store failure", header: "Bearer broken", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(router, http.MethodGet, "/me", tt.header)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	w := serve(router, http.MethodGet, "/me", "Bearer lider-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cedula":"71000001"`)
	assert.Contains(t, w.Body.String(), `"role":"lider"`)
}

func TestRequireAdmin(t *testing.T) {
	router := newAuthRouter()

	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodGet, "/admin", "Bearer admin-token").Code)
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/admin", "Bearer lider-token").Code)

	bare := gin.New()
	bare.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	assert.Equal(t, http.StatusUnauthorized, serve(bare, http.MethodGet, "/admin", "").Code)
}

func TestIdentityFrom_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, err := IdentityFrom(c)
	assert.ErrorIs(t, err, ErrNoIdentity)

	c.Set(models.IdentityContextKey, "not an identity")
	_, err = IdentityFrom(c)
	assert.ErrorIs(t, err, ErrNoIdentity)
}

type fixedLimiter struct {
	allow bool
	wait  time.Duration
	keys  []string
}

func (f *fixedLimiter) Allow(key, operation string) (bool, time.Duration) {
	f.keys = append(f.keys, key)
	return f.allow, f.wait
}

func TestRateLimit(t *testing.T) {
	newRouter := func(limiter Limiter) *gin.Engine {
		router := gin.New()
		router.POST("/auth/lider", RateLimit(limiter, "leader_login"), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("allowed", func(t *testing.T) {
		limiter := &fixedLimiter{allow: true}
		w := serve(newRouter(limiter), http.MethodPost, "/auth/lider", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, limiter.keys, 1)
	})

	t.Run("rejected", func(t *testing.T) {
		w := serve(newRouter(&fixedLimiter{wait: 1500 * time.Millisecond}), http.MethodPost, "/auth/lider", "")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "2", w.Header().Get("Retry-After"))
	})

	t.Run("nil limiter", func(t *testing.T) {
		w := serve(newRouter(nil), http.MethodPost, "/auth/lider", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
