package services

import (
	"context"
	"testing"
	"time"

	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaceDistance(t *testing.T) {
	d, err := FaceDistance([]float64{0, 0, 0}, []float64{1, 2, 2})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, d, 1e-9)

	_, err = FaceDistance([]float64{0, 0}, []float64{1})
	assert.Error(t, err)

	_, err = FaceDistance([]float64{0, 0}, nil)
	assert.Error(t, err)
}

func TestAuthService_AdminLogin(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	_, err := ts.auth.CreateAdminCode(ctx, "Coordinación", "campana-2026", nil)
	require.NoError(t, err)

	t.Run("valid code", func(t *testing.T) {
		resp, err := ts.auth.AdminLogin(ctx, models.AdminLoginRequest{Code: " campana-2026 "})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, models.SessionAdmin, resp.Identity.Role)

		identity, err := ts.auth.Authenticate(ctx, resp.Token)
		require.NoError(t, err)
		assert.Equal(t, resp.Identity, identity)
	})

	t.Run("wrong code", func(t *testing.T) {
		_, err := ts.auth.AdminLogin(ctx, models.AdminLoginRequest{Code: "otra-cosa"})
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("short codes are rejected on creation", func(t *testing.T) {
		_, err := ts.auth.CreateAdminCode(ctx, "x", "123", nil)
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestAuthService_AdminLoginWithFace(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	enrolled := []float64{0.1, 0.2, 0.3, 0.4}
	_, err := ts.auth.CreateAdminCode(ctx, "Gerencia", "gerencia-2026", enrolled)
	require.NoError(t, err)

	_, err = ts.auth.AdminLogin(ctx, models.AdminLoginRequest{Code: "gerencia-2026"})
	assert.ErrorIs(t, err, models.ErrFaceMismatch, "missing descriptor")

	_, err = ts.auth.AdminLogin(ctx, models.AdminLoginRequest{Code: "gerencia-2026", FaceDescriptor: []float64{0.9, 0.9, 0.9, 0.9}})
	assert.ErrorIs(t, err, models.ErrFaceMismatch)

	resp, err := ts.auth.AdminLogin(ctx, models.AdminLoginRequest{Code: "gerencia-2026", FaceDescriptor: []float64{0.12, 0.21, 0.3, 0.39}})
	require.NoError(t, err)
	assert.Equal(t, models.SessionAdmin, resp.Identity.Role)
}

func TestAuthService_LeaderLogin(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.seedLeader(t, "71000001", "Laura Gómez")

	_, err := ts.auth.LeaderLogin(ctx, models.LeaderLoginRequest{Cedula: "71000001", TelefonoSufijo: "0000"})
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	_, err = ts.auth.LeaderLogin(ctx, models.LeaderLoginRequest{Cedula: "99999999", TelefonoSufijo: "4567"})
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	resp, err := ts.auth.LeaderLogin(ctx, models.LeaderLoginRequest{Cedula: "71.000.001", TelefonoSufijo: "4567"})
	require.NoError(t, err)
	assert.Equal(t, models.SessionLider, resp.Identity.Role)
	assert.Equal(t, "71000001", resp.Identity.Cedula)
	assert.Equal(t, "Laura Gómez", resp.Identity.Nombre)
}

func TestAuthService_LogoutInvalidatesToken(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.seedLeader(t, "71000001", "Laura Gómez")

	resp, err := ts.auth.LeaderLogin(ctx, models.LeaderLoginRequest{Cedula: "71000001", TelefonoSufijo: "4567"})
	require.NoError(t, err)

	require.NoError(t, ts.auth.Logout(ctx, resp.Identity))

	_, err = ts.auth.Authenticate(ctx, resp.Token)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestAuthService_AuthenticateRejectsTamperedTokens(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	t.Run("garbage", func(t *testing.T) {
		_, err := ts.auth.Authenticate(ctx, "not-a-token")
		assert.ErrorIs(t, err, models.ErrSessionNotFound)
	})

	t.Run("wrong secret", func(t *testing.T) {
		claims := models.SessionClaims{
			Role: models.SessionAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        "forged",
				Issuer:    tokenIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("another-secret"))
		require.NoError(t, err)

		_, err = ts.auth.Authenticate(ctx, token)
		assert.ErrorIs(t, err, models.ErrSessionNotFound)
	})

	t.Run("expired", func(t *testing.T) {
		_, err := ts.auth.CreateAdminCode(ctx, "Coordinación", "campana-2026", nil)
		require.NoError(t, err)

		ts.auth.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		resp, err := ts.auth.AdminLogin(ctx, models.AdminLoginRequest{Code: "campana-2026"})
		ts.auth.now = time.Now
		require.NoError(t, err)

		_, err = ts.auth.Authenticate(ctx, resp.Token)
		assert.ErrorIs(t, err, models.ErrSessionNotFound)
	})
}
