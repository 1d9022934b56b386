package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequestTiming(t *testing.T) {
	router := gin.New()
	router.Use(RequestTiming())

	var startTime time.Time
	router.GET("/test", func(c *gin.Context) {
		startTime = c.MustGet("request_start_time").(time.Time)
		c.Status(http.StatusOK)
	})
	router.GET("/error", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/test", "").Code)
	assert.False(t, startTime.IsZero())

	assert.Equal(t, http.StatusInternalServerError, serve(router, http.MethodGet, "/error", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/bad", "").Code)
}
