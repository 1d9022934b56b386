package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestLeaderReference(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *string
	}{
		{"blank", "  ", nil},
		{"admin marker", "admin", nil},
		{"admin marker any case", "ADMIN", nil},
		{"dotted cedula", "1.020.304", strPtr("1020304")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, leaderReference(tt.raw))
		})
	}
}

func TestBuildPersonQuery(t *testing.T) {
	t.Run("empty filter", func(t *testing.T) {
		q, err := buildPersonQuery(PersonFilter{})
		require.NoError(t, err)
		assert.Empty(t, q)
	})

	t.Run("rejects unknown rol", func(t *testing.T) {
		_, err := buildPersonQuery(PersonFilter{Rol: "admin"})
		assert.ErrorIs(t, err, models.ErrInvalidRol)
	})

	t.Run("rejects unknown estado", func(t *testing.T) {
		_, err := buildPersonQuery(PersonFilter{Estado: "BORRADO"})
		assert.ErrorIs(t, err, models.ErrInvalidEstado)
	})

	t.Run("canonicalizes municipality", func(t *testing.T) {
		q, err := buildPersonQuery(PersonFilter{Municipio: "medellin"})
		require.NoError(t, err)
		assert.Equal(t, "Medellín", q["municipio_puesto"])
	})

	t.Run("undefined bucket matches missing values", func(t *testing.T) {
		q, err := buildPersonQuery(PersonFilter{Municipio: rules.UndefinedMunicipio})
		require.NoError(t, err)
		assert.Equal(t, bson.M{"$in": bson.A{nil, ""}}, q["municipio_puesto"])
	})

	t.Run("search escapes regex", func(t *testing.T) {
		q, err := buildPersonQuery(PersonFilter{Search: "a.b"})
		require.NoError(t, err)
		assert.Contains(t, q, "$or")
	})
}

func TestDedupeCedulas(t *testing.T) {
	got := dedupeCedulas([]string{"300", "1.00", "", "300", "500"}, "500")
	assert.Equal(t, []string{"100", "300"}, got)
}

func TestApplyPatch_CanonicalizesFields(t *testing.T) {
	p := models.Person{NombreCompleto: "Ana"}
	applyPatch(&p, models.PersonPatch{
		NombreCompleto:  strPtr("  Ana María "),
		Telefono:        strPtr("300 123 4567"),
		MunicipioPuesto: strPtr("yarumal"),
		Notas:           strPtr("   "),
	})

	assert.Equal(t, "Ana María", p.NombreCompleto)
	require.NotNil(t, p.Telefono)
	assert.Equal(t, "3001234567", *p.Telefono)
	require.NotNil(t, p.MunicipioPuesto)
	assert.Equal(t, "Yarumal", *p.MunicipioPuesto)
	assert.Nil(t, p.Notas)
}

func TestPersonService_RegisterLeaderSelfReferences(t *testing.T) {
	ts := newTestServices(t)

	leader := ts.seedLeader(t, "71000001", "Laura Gómez")

	require.NotNil(t, leader.CedulaLider)
	assert.Equal(t, leader.Cedula, *leader.CedulaLider)
	assert.Equal(t, models.EstadoAprobado, leader.Estado)
	assert.True(t, leader.VotaEnBello)
}

func TestPersonService_RegisterDerivesEstado(t *testing.T) {
	ts := newTestServices(t)
	ts.seedLeader(t, "71000001", "Laura Gómez")
	ctx := context.Background()

	tests := []struct {
		name      string
		cedula    string
		residence *string
		puesto    *string
		want      models.Estado
	}{
		{"unknown residence", "81000001", strPtr("No Se"), strPtr("Bello"), models.EstadoPendiente},
		{"missing puesto", "81000002", strPtr("Bello"), nil, models.EstadoPendiente},
		{"same municipality", "81000003", strPtr("Yarumal"), strPtr("yarumal"), models.EstadoAprobado},
		{"different municipality", "81000004", strPtr("Bello"), strPtr("Medellín"), models.EstadoRechazado},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ts.persons.Register(ctx, leaderIdentity("71000001"), models.PersonInput{
				Cedula:            tt.cedula,
				NombreCompleto:    "Persona " + tt.cedula,
				Rol:               models.RolAsociado,
				MunicipioVotacion: tt.residence,
				MunicipioPuesto:   tt.puesto,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Estado)
		})
	}
}

func TestPersonService_CapacityGuard(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.seedLeader(t, "71000001", "Laura Gómez")

	ts.seedMembers(t, "71000001", models.RolAsociado, "8100", rules.MaxTeamSize)

	_, err := ts.persons.Register(ctx, leaderIdentity("71000001"), models.PersonInput{
		Cedula:         "81009999",
		NombreCompleto: "Uno Más",
		Rol:            models.RolAsociado,
	})
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)

	count, err := ts.env.MongoDB.Collection("personas").CountDocuments(ctx, bson.M{"cedula": "81009999"})
	require.NoError(t, err)
	assert.Zero(t, count, "rejected registration must not be inserted")

	// impulsores are counted separately
	_, err = ts.persons.Register(ctx, leaderIdentity("71000001"), models.PersonInput{
		Cedula:         "82000001",
		NombreCompleto: "Impulsor Uno",
		Rol:            models.RolImpulsor,
	})
	assert.NoError(t, err)
}

func TestPersonService_ConcurrentRegisterRespectsCapacity(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.seedLeader(t, "71000001", "Laura Gómez")
	ts.seedMembers(t, "71000001", models.RolAsociado, "8100", rules.MaxTeamSize-1)

	const workers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ts.persons.Register(ctx, adminIdentity, models.PersonInput{
				Cedula:         fmt.Sprintf("8300%03d", i),
				NombreCompleto: "Concurrente Uno",
				Rol:            models.RolAsociado,
				CedulaLider:    strPtr("71000001"),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, models.ErrCapacityExceeded):
				rejected++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)

	count, err := ts.env.MongoDB.Collection("personas").CountDocuments(ctx, bson.M{
		"cedula_lider": "71000001",
		"rol":          models.RolAsociado,
	})
	require.NoError(t, err)
	assert.EqualValues(t, rules.MaxTeamSize, count)
}

func TestPersonService_RegisterErrors(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.seedLeader(t, "71000001", "Laura Gómez")

	t.Run("duplicate cedula", func(t *testing.T) {
		_, err := ts.persons.Register(ctx, adminIdentity, models.PersonInput{
			Cedula: "71.000.001", NombreCompleto: "Otra", Rol: models.RolAsociado,
		})
		assert.ErrorIs(t, err, models.ErrDuplicateCedula)
	})

	t.Run("leader session cannot create leaders", func(t *testing.T) {
		_, err := ts.persons.Register(ctx, leaderIdentity("71000001"), models.PersonInput{
			Cedula: "72000001", NombreCompleto: "Otro Líder", Rol: models.RolLider,
		})
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("phone must have ten digits", func(t *testing.T) {
		_, err := ts.persons.Register(ctx, adminIdentity, models.PersonInput{
			Cedula: "83000001", NombreCompleto: "Sin Teléfono", Rol: models.RolAsociado, Telefono: strPtr("30012"),
		})
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("self registration needs an existing leader", func(t *testing.T) {
		_, err := ts.persons.SelfRegister(ctx, "99999999", models.PersonInput{
			Cedula: "83000002", NombreCompleto: "Invitado",
		})
		assert.ErrorIs(t, err, models.ErrLeaderNotFound)
	})

	t.Run("self registration rejects non-leader link", func(t *testing.T) {
		ts.seedMembers(t, "71000001", models.RolAsociado, "8400", 1)
		_, err := ts.persons.SelfRegister(ctx, "8400000", models.PersonInput{
			Cedula: "83000003", NombreCompleto: "Invitado",
		})
		assert.ErrorIs(t, err, models.ErrNotALeader)
	})
}

func TestPersonService_AdminUnassignedNeverStoresAdmin(t *testing.T) {
	ts := newTestServices(t)

	p, err := ts.persons.Register(context.Background(), adminIdentity, models.PersonInput{
		Cedula:         "85000001",
		NombreCompleto: "Sin Líder",
		Rol:            models.RolAsociado,
		CedulaLider:    strPtr("admin"),
	})
	require.NoError(t, err)
	assert.Nil(t, p.CedulaLider)

	var raw bson.M
	require.NoError(t, ts.env.MongoDB.Collection("personas").FindOne(context.Background(), bson.M{"cedula": "85000001"}).Decode(&raw))
	assert.Nil(t, raw["cedula_lider"])
}

func TestPersonService_ListScopesLeaders(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.seedLeader(t, "71000001", "Laura Gómez")
	ts.seedLeader(t, "71000002", "Mario Ruiz")
	ts.seedMembers(t, "71000001", models.RolAsociado, "8100", 3)
	ts.seedMembers(t, "71000002", models.RolAsociado, "8200", 2)

	all, err := ts.persons.List(ctx, adminIdentity, PersonFilter{}, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 7, all.Pagination.Total)

	own, err := ts.persons.List(ctx, leaderIdentity("71000002"), PersonFilter{CedulaLider: "71000001"}, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, own.Pagination.Total, "leader sees itself and its two members only")

	team, err := ts.persons.Team(ctx, leaderIdentity("71000001"), "71000001")
	require.NoError(t, err)
	assert.Len(t, team.Asociados, 3)
	assert.Empty(t, team.Impulsores)

	_, err = ts.persons.Team(ctx, leaderIdentity("71000001"), "71000002")
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestPersonService_UpdateRederivesEstado(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.seedLeader(t, "71000001", "Laura Gómez")

	_, err := ts.persons.Register(ctx, leaderIdentity("71000001"), models.PersonInput{
		Cedula:            "81000001",
		NombreCompleto:    "Ana Pérez",
		Rol:               models.RolAsociado,
		MunicipioVotacion: strPtr("Bello"),
		MunicipioPuesto:   strPtr("Medellín"),
	})
	require.NoError(t, err)

	updated, err := ts.persons.Update(ctx, leaderIdentity("71000001"), "81000001", models.PersonPatch{
		MunicipioPuesto: strPtr("bello"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.EstadoAprobado, updated.Estado)
	assert.True(t, updated.VotaEnBello)

	t.Run("explicit override wins", func(t *testing.T) {
		updated, err := ts.persons.Update(ctx, adminIdentity, "81000001", models.PersonPatch{
			MunicipioPuesto: strPtr("Yarumal"),
			Estado:          estadoPtr(models.EstadoAprobado),
		})
		require.NoError(t, err)
		assert.Equal(t, models.EstadoAprobado, updated.Estado)
		assert.False(t, updated.VotaEnBello)
	})

	t.Run("leaders cannot change estado", func(t *testing.T) {
		_, err := ts.persons.Update(ctx, leaderIdentity("71000001"), "81000001", models.PersonPatch{
			Estado: estadoPtr(models.EstadoRechazado),
		})
		assert.ErrorIs(t, err, models.ErrForbidden)
	})
}

func TestPersonService_UpdateReassignsWithinCapacity(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.seedLeader(t, "71000001", "Laura Gómez")
	ts.seedLeader(t, "71000002", "Mario Ruiz")
	ts.seedMembers(t, "71000001", models.RolAsociado, "8100", 1)
	ts.seedMembers(t, "71000002", models.RolAsociado, "8200", rules.MaxTeamSize)

	_, err := ts.persons.Update(ctx, adminIdentity, "8100000", models.PersonPatch{CedulaLider: strPtr("71000002")})
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)

	moved, err := ts.persons.Update(ctx, adminIdentity, "8200000", models.PersonPatch{CedulaLider: strPtr("71000001")})
	require.NoError(t, err)
	require.NotNil(t, moved.CedulaLider)
	assert.Equal(t, "71000001", *moved.CedulaLider)
}

func TestPersonService_DemoteRequiresEmptyTeam(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.seedLeader(t, "71000001", "Laura Gómez")
	ts.seedMembers(t, "71000001", models.RolAsociado, "8100", 1)

	_, err := ts.persons.Update(ctx, adminIdentity, "71000001", models.PersonPatch{Rol: rolPtr(models.RolAsociado)})
	assert.ErrorIs(t, err, models.ErrInvalidAssignment)
}

func TestPersonService_SetEstado(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.seedLeader(t, "71000001", "Laura Gómez")

	p, err := ts.persons.SetEstado(ctx, adminIdentity, "71000001", models.EstadoRequest{Estado: models.EstadoRechazado})
	require.NoError(t, err)
	assert.Equal(t, models.EstadoRechazado, p.Estado)

	_, err = ts.persons.SetEstado(ctx, leaderIdentity("71000001"), "71000001", models.EstadoRequest{Estado: models.EstadoAprobado})
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = ts.persons.SetEstado(ctx, adminIdentity, "404404", models.EstadoRequest{Estado: models.EstadoAprobado})
	assert.ErrorIs(t, err, models.ErrPersonNotFound)
}

func TestPersonService_UpdateDoesNotRevertConcurrentReassignment(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.seedLeader(t, "71000001", "Laura Gómez")
	ts.seedLeader(t, "71000002", "Mario Ruiz")
	members := ts.seedMembers(t, "71000001", models.RolAsociado, "8100", 1)

	stale, err := ts.persons.find(ctx, members[0])
	require.NoError(t, err)

	// another admin moves the member while this edit is in flight
	_, err = ts.persons.Update(ctx, adminIdentity, members[0], models.PersonPatch{CedulaLider: strPtr("71000002")})
	require.NoError(t, err)

	err = ts.persons.updateOne(ctx, stale, bson.M{"notas": "editado", "cedula_lider": stale.CedulaLider})
	assert.ErrorIs(t, err, models.ErrConcurrentUpdate)
	assert.Equal(t, "71000002", *leaderOf(t, ts, members[0]))

	gone := *stale
	gone.Cedula = "99999999"
	assert.ErrorIs(t, ts.persons.updateOne(ctx, &gone, bson.M{"notas": "x"}), models.ErrPersonNotFound)

	fresh, err := ts.persons.Update(ctx, adminIdentity, members[0], models.PersonPatch{Notas: strPtr("editado")})
	require.NoError(t, err)
	assert.Equal(t, "71000002", *fresh.CedulaLider)
}
