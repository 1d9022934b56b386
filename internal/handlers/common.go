package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/middleware"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/services"
	"github.com/crm-electoral/app-crm/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const internalErrorMessage = "Error interno del servidor"

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationErrorResponse lists the fields that failed validation
type ValidationErrorResponse struct {
	Error  string                  `json:"error"`
	Errors []utils.ValidationError `json:"errors"`
}

// HealthResponse reports the state of the API dependencies
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// CountResponse reports how many rows an operation touched
type CountResponse struct {
	Count int64 `json:"count"`
}

// statusFor maps a service error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrPersonNotFound),
		errors.Is(err, models.ErrLeaderNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicateCedula),
		errors.Is(err, models.ErrCapacityExceeded),
		errors.Is(err, models.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidCredentials),
		errors.Is(err, models.ErrFaceMismatch),
		errors.Is(err, models.ErrSessionNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrCedulaImmutable),
		errors.Is(err, models.ErrNotALeader),
		errors.Is(err, models.ErrInvalidRol),
		errors.Is(err, models.ErrInvalidEstado),
		errors.Is(err, models.ErrInvalidAssignment),
		errors.Is(err, models.ErrUnmappableHeaders),
		errors.Is(err, models.ErrEmptyImport),
		errors.Is(err, models.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrStreamUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes the reply for a service error. Unexpected errors are
// logged and hidden from the caller.
func respondError(c *gin.Context, logger *logging.SafeLogger, operation string, err error) {
	var validation *utils.ValidationResult
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{Error: models.ErrValidation.Error(), Errors: validation.Errors})
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(operation+" failed", zap.Error(err), zap.String("request_id", c.GetString("request_id")))
		_ = c.Error(err)
		c.JSON(status, ErrorResponse{Error: internalErrorMessage})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

// bindJSON decodes the request body and replies 400 on failure
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Datos inválidos: " + err.Error()})
		return false
	}
	return true
}

// sessionIdentity returns the caller identity and replies 401 when missing
func sessionIdentity(c *gin.Context) (models.SessionIdentity, bool) {
	identity, err := middleware.IdentityFrom(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: models.ErrSessionNotFound.Error()})
		return models.SessionIdentity{}, false
	}
	return identity, true
}
