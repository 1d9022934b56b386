package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/services"
	"github.com/crm-electoral/app-crm/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrPersonNotFound, http.StatusNotFound},
		{models.ErrLeaderNotFound, http.StatusNotFound},
		{models.ErrDuplicateCedula, http.StatusConflict},
		{fmt.Errorf("register: %w", models.ErrCapacityExceeded), http.StatusConflict},
		{models.ErrConcurrentUpdate, http.StatusConflict},
		{models.ErrInvalidCredentials, http.StatusUnauthorized},
		{models.ErrFaceMismatch, http.StatusUnauthorized},
		{models.ErrForbidden, http.StatusForbidden},
		{models.ErrNotALeader, http.StatusBadRequest},
		{fmt.Errorf("%w: solo asociado o impulsor", models.ErrInvalidRol), http.StatusBadRequest},
		{models.ErrUnmappableHeaders, http.StatusBadRequest},
		{models.ErrEmptyMessage, http.StatusBadRequest},
		{services.ErrStreamUnavailable, http.StatusServiceUnavailable},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestRespondError(t *testing.T) {
	t.Run("validation result lists fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		result := utils.NewValidationResult()
		result.AddError("cedula", "La cédula debe tener entre 5 y 10 dígitos")

		respondError(c, testLogger, "register", fmt.Errorf("wrapped: %w", result.Err()))

		require.Equal(t, http.StatusBadRequest, w.Code)
		body := decode[ValidationErrorResponse](t, w)
		require.Len(t, body.Errors, 1)
		assert.Equal(t, "cedula", body.Errors[0].Field)
	})

	t.Run("internal errors are hidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		respondError(c, testLogger, "list", errors.New("mongo: server selection timeout"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, internalErrorMessage, decode[ErrorResponse](t, w).Error)
		assert.Len(t, c.Errors, 1)
	})

	t.Run("known errors keep their message", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		respondError(c, testLogger, "get", models.ErrPersonNotFound)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, models.ErrPersonNotFound.Error(), decode[ErrorResponse](t, w).Error)
	})
}

func TestHandlers_RequireIdentity(t *testing.T) {
	router := withIdentity(nil)
	persons := NewPersonHandlers(testLogger, nil, nil)
	auth := NewAuthHandlers(testLogger, nil)
	router.GET("/personas", persons.List)
	router.GET("/me", auth.Me)

	assert.Equal(t, http.StatusUnauthorized, doRequest(t, router, http.MethodGet, "/personas", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, router, http.MethodGet, "/me", "", nil).Code)
}

func TestHandlers_BadRequestsNeverReachServices(t *testing.T) {
	leader := models.SessionIdentity{SessionID: "s-1", Cedula: "71000001", Role: models.SessionLider}
	router := withIdentity(&leader)

	persons := NewPersonHandlers(testLogger, nil, nil)
	chat := NewChatHandlers(testLogger, nil)
	puestos := NewPuestoHandlers(testLogger, services.NewPuestoService(nil, testLogger))
	admin := NewAdminHandlers(testLogger, nil, nil, nil)
	links := NewLinkHandlers(testLogger, nil)
	authHandlers := NewAuthHandlers(testLogger, nil)

	router.POST("/personas", persons.Register)
	router.GET("/personas", persons.List)
	router.PUT("/personas/:cedula/estado", persons.SetEstado)
	router.GET("/chat/messages", chat.List)
	router.GET("/puestos", puestos.Puestos)
	router.GET("/puestos/mesas", puestos.Mesas)
	router.POST("/admin/import", admin.Import)
	router.POST("/admin/codes", admin.CreateAdminCode)
	router.POST("/links/invite", links.Invite)
	router.POST("/auth/admin", authHandlers.AdminLogin)
	router.POST("/auth/lider", authHandlers.LeaderLogin)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"malformed person", http.MethodPost, "/personas", "not an object"},
		{"page zero", http.MethodGet, "/personas?page=0", nil},
		{"per page too large", http.MethodGet, "/personas?per_page=1000", nil},
		{"estado missing", http.MethodPut, "/personas/81000001/estado", map[string]string{}},
		{"negative chat limit", http.MethodGet, "/chat/messages?limit=-4", nil},
		{"puestos without municipio", http.MethodGet, "/puestos", nil},
		{"mesas without puesto", http.MethodGet, "/puestos/mesas?municipio=Bello", nil},
		{"import without file", http.MethodPost, "/admin/import", nil},
		{"admin code without label", http.MethodPost, "/admin/codes", map[string]string{"code": "123456"}},
		{"invite without phone", http.MethodPost, "/links/invite", map[string]string{"nombre": "Ana"}},
		{"admin login without code", http.MethodPost, "/auth/admin", map[string]string{}},
		{"leader login without cedula", http.MethodPost, "/auth/lider", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, tt.method, tt.path, "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestPuestoHandlers_Municipios(t *testing.T) {
	router := withIdentity(nil)
	h := NewPuestoHandlers(testLogger, services.NewPuestoService(nil, testLogger))
	router.GET("/puestos/municipios", h.Municipios)

	w := doRequest(t, router, http.MethodGet, "/puestos/municipios", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]string](t, w)
	assert.Len(t, list, 126)
	assert.Equal(t, models.MunicipioDesconocido, list[len(list)-1])
}
