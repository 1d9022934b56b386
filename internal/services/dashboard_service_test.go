package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseFeatureCollection(t *testing.T) {
	fc, err := ParseFeatureCollection([]byte(testGeoJSON))
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)
	assert.Equal(t, "BELLO", FeatureName(fc.Features[0]))
	assert.Equal(t, "Medellín", FeatureName(fc.Features[1]))
	assert.Equal(t, "YARUMAL", FeatureName(fc.Features[2]))

	_, err = ParseFeatureCollection([]byte(`{"type":"Feature"}`))
	assert.Error(t, err)

	_, err = ParseFeatureCollection([]byte(`not json`))
	assert.Error(t, err)
}

func TestJoinCounts(t *testing.T) {
	fc, err := ParseFeatureCollection([]byte(testGeoJSON))
	require.NoError(t, err)

	out := JoinCounts(fc, []models.MunicipalityCount{
		{Name: "Bello", Count: 3, Percentage: 75},
		{Name: "Medellin", Count: 1, Percentage: 25},
	})

	require.Len(t, out.Features, 3)
	assert.Equal(t, 3, out.Features[0].Properties["count"])
	assert.Equal(t, 1, out.Features[1].Properties["count"])
	assert.Equal(t, 0, out.Features[2].Properties["count"])
	assert.NotContains(t, fc.Features[0].Properties, "count", "source collection is not modified")
	assert.Equal(t, fc.Features[0].Geometry, out.Features[0].Geometry)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"count":3`)
	assert.Contains(t, string(raw), `"type":"FeatureCollection"`)
}

func TestGeoService_MissingFile(t *testing.T) {
	geo := NewGeoService(t.TempDir()+"/missing.geojson", logging.NewSafeLogger(zap.NewNop()))
	_, err := geo.Features()
	assert.Error(t, err)
}

func TestDashboardScope(t *testing.T) {
	_, key, err := dashboardScope(adminIdentity)
	require.NoError(t, err)
	assert.Equal(t, "dashboard:admin", key)

	scope, key, err := dashboardScope(leaderIdentity("71000001"))
	require.NoError(t, err)
	assert.Equal(t, "dashboard:lider:71000001", key)
	assert.Equal(t, "71000001", scope["cedula_lider"])

	_, _, err = dashboardScope(models.SessionIdentity{})
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestDashboardService_Summary(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.seedLeader(t, "71000001", "Laura Gómez")
	ts.seedLeader(t, "71000002", "Mario Ruiz")

	register := func(identity models.SessionIdentity, cedula string, rol models.Rol, residence, puesto *string) {
		_, err := ts.persons.Register(ctx, identity, models.PersonInput{
			Cedula:            cedula,
			NombreCompleto:    "Persona " + cedula,
			Rol:               rol,
			MunicipioVotacion: residence,
			MunicipioPuesto:   puesto,
		})
		require.NoError(t, err)
	}
	register(leaderIdentity("71000001"), "81000001", models.RolAsociado, strPtr("Bello"), strPtr("Bello"))
	register(leaderIdentity("71000001"), "81000002", models.RolImpulsor, strPtr("Bello"), strPtr("Medellín"))
	register(leaderIdentity("71000002"), "82000001", models.RolAsociado, strPtr("No Se"), nil)

	summary, err := ts.dashboard.Summary(ctx, adminIdentity)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 3, summary.PorEstado[models.EstadoAprobado])
	assert.Equal(t, 1, summary.PorEstado[models.EstadoRechazado])
	assert.Equal(t, 1, summary.PorEstado[models.EstadoPendiente])
	assert.Equal(t, 2, summary.PorRol[models.RolLider])
	assert.Equal(t, 2, summary.PorRol[models.RolAsociado])
	assert.Equal(t, 1, summary.PorRol[models.RolImpulsor])
	assert.Equal(t, 3, summary.VotanEnBello)
	require.NotEmpty(t, summary.Municipios)
	assert.Equal(t, "Bello", summary.Municipios[0].Name)
	assert.Equal(t, 3, summary.Municipios[0].Count)

	leader, err := ts.dashboard.Summary(ctx, leaderIdentity("71000001"))
	require.NoError(t, err)
	assert.Equal(t, 3, leader.Total, "leader and its two members")

	t.Run("writes invalidate the cache", func(t *testing.T) {
		register(leaderIdentity("71000001"), "81000003", models.RolAsociado, strPtr("Bello"), strPtr("Bello"))

		summary, err := ts.dashboard.Summary(ctx, adminIdentity)
		require.NoError(t, err)
		assert.Equal(t, 6, summary.Total)
	})

	t.Run("map carries counts", func(t *testing.T) {
		fc, err := ts.dashboard.Map(ctx, adminIdentity)
		require.NoError(t, err)
		require.Len(t, fc.Features, 3)
		assert.EqualValues(t, 4, fc.Features[0].Properties["count"])
		assert.EqualValues(t, 1, fc.Features[1].Properties["count"])
	})
}
