package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func defaultColumnAliases(t *testing.T) ColumnAliases {
	t.Helper()
	aliases, err := LoadColumnAliases("")
	require.NoError(t, err)
	return aliases
}

func TestParseColumnAliases(t *testing.T) {
	t.Run("embedded table", func(t *testing.T) {
		aliases := defaultColumnAliases(t)
		assert.Contains(t, aliases, FieldCedula)
		assert.Contains(t, aliases, FieldVotaEnBello)
	})

	t.Run("alias shared by two fields", func(t *testing.T) {
		_, err := ParseColumnAliases([]byte("cedula: [doc]\nnombre_completo: [DOC]\n"))
		assert.Error(t, err)
	})

	t.Run("required field missing", func(t *testing.T) {
		_, err := ParseColumnAliases([]byte("cedula: [doc]\n"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := ParseColumnAliases([]byte("cedula: [doc"))
		assert.Error(t, err)
	})
}

func TestResolveHeaders(t *testing.T) {
	aliases := defaultColumnAliases(t)

	tests := []struct {
		name    string
		headers []string
		want    map[string]int
		wantErr bool
	}{
		{
			name:    "accented and upper case spellings",
			headers: []string{"CÉDULA", "Nombre Completo", "Teléfono", "Vota en Bello"},
			want:    map[string]int{FieldCedula: 0, FieldNombreCompleto: 1, FieldTelefono: 2, FieldVotaEnBello: 3},
		},
		{
			name:    "byte order mark and unknown columns",
			headers: []string{"\ufeffcedula", "color favorito", "nombre"},
			want:    map[string]int{FieldCedula: 0, FieldNombreCompleto: 2},
		},
		{
			name:    "first matching column wins",
			headers: []string{"cedula", "nombre", "CC", "Estado"},
			want:    map[string]int{FieldCedula: 0, FieldNombreCompleto: 1, FieldEstado: 3},
		},
		{
			name:    "missing name column",
			headers: []string{"cedula", "telefono"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := aliases.ResolveHeaders(tt.headers)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrUnmappableHeaders)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBoolAndRol(t *testing.T) {
	for _, raw := range []string{"Sí", "si", "TRUE", "1", "x"} {
		v, ok := parseBool(raw)
		assert.True(t, ok, raw)
		assert.True(t, v, raw)
	}
	for _, raw := range []string{"no", "False", "0"} {
		v, ok := parseBool(raw)
		assert.True(t, ok, raw)
		assert.False(t, v, raw)
	}
	_, ok := parseBool("tal vez")
	assert.False(t, ok)

	rol, ok := parseRol("Líder")
	assert.True(t, ok)
	assert.Equal(t, models.RolLider, rol)
	_, ok = parseRol("admin")
	assert.False(t, ok)
}

func TestCanonicalizeRow(t *testing.T) {
	config.AppConfig = testutil.TestConfig()
	svc := NewImportService(nil, nil, defaultColumnAliases(t), logging.NewSafeLogger(zap.NewNop()))
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	headers := []string{"Cédula", "Nombre", "Celular", "Rol", "Líder", "Municipio", "Municipio Puesto", "Votos", "Estado", "Vota en Bello"}
	columns, err := svc.aliases.ResolveHeaders(headers)
	require.NoError(t, err)

	t.Run("derives estado and canonical municipalities", func(t *testing.T) {
		row, warnings, err := svc.canonicalizeRow(
			[]string{"1.020.304", " Ana  Pérez ", "300 123 4567", "asociado", "71000001", "bello", "BELLO", "", "", ""},
			columns, 2)
		require.NoError(t, err)
		assert.Empty(t, warnings)
		assert.Equal(t, "1020304", row.person.Cedula)
		assert.Equal(t, "Ana Pérez", row.person.NombreCompleto)
		assert.Equal(t, "3001234567", *row.person.Telefono)
		assert.Equal(t, "Bello", *row.person.MunicipioVotacion)
		assert.Equal(t, models.EstadoAprobado, row.person.Estado)
		assert.True(t, row.person.VotaEnBello)
		assert.Equal(t, "71000001", row.rawLeader)
	})

	t.Run("explicit status and flag win", func(t *testing.T) {
		row, _, err := svc.canonicalizeRow(
			[]string{"1020305", "Luis", "", "impulsor", "", "Bello", "Medellín", "12", "aprobado", "si"},
			columns, 3)
		require.NoError(t, err)
		assert.Equal(t, models.EstadoAprobado, row.person.Estado)
		assert.True(t, row.person.VotaEnBello)
		assert.Equal(t, 12, row.person.VotosPrometidos)
	})

	t.Run("leaders reference themselves", func(t *testing.T) {
		row, _, err := svc.canonicalizeRow(
			[]string{"1020306", "Marta", "", "lider", "admin", "", "", "", "", ""},
			columns, 4)
		require.NoError(t, err)
		require.NotNil(t, row.person.CedulaLider)
		assert.Equal(t, "1020306", *row.person.CedulaLider)
		assert.Equal(t, models.EstadoPendiente, row.person.Estado)
	})

	t.Run("admin leader marker means unassigned", func(t *testing.T) {
		row, _, err := svc.canonicalizeRow(
			[]string{"1020307", "Pedro", "", "", "ADMIN", "", "", "", "", ""},
			columns, 5)
		require.NoError(t, err)
		assert.Empty(t, row.rawLeader)
		assert.Equal(t, models.RolAsociado, row.person.Rol)
	})

	t.Run("warnings keep the row", func(t *testing.T) {
		_, warnings, err := svc.canonicalizeRow(
			[]string{"1020308", "Rosa", "12345", "asociado", "", "Gotham", "", "7", "quizá", "tal vez"},
			columns, 6)
		require.NoError(t, err)
		assert.Len(t, warnings, 5)
	})

	t.Run("invalid cedula rejects the row", func(t *testing.T) {
		_, _, err := svc.canonicalizeRow([]string{"12", "Rosa", "", "", "", "", "", "", "", ""}, columns, 7)
		assert.Error(t, err)
	})

	t.Run("unknown rol rejects the row", func(t *testing.T) {
		_, _, err := svc.canonicalizeRow([]string{"1020309", "Rosa", "", "admin", "", "", "", "", "", ""}, columns, 8)
		assert.Error(t, err)
	})
}

func TestReadCSV_DetectsSemicolons(t *testing.T) {
	records, err := readCSV(strings.NewReader("cedula;nombre\n1020304;Ana Pérez\n"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"1020304", "Ana Pérez"}, records[1])

	records, err = readCSV(strings.NewReader("cedula,nombre\n1020304,\"Pérez, Ana\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "Pérez, Ana", records[1][1])
}

func TestImportService_Import(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.seedLeader(t, "71000001", "Laura Gómez")

	csv := strings.Join([]string{
		"Cédula;Nombre Completo;Teléfono;Rol;Cédula Líder;Municipio;Municipio Puesto",
		"72000001;Mario Ruiz;3109876543;lider;;Bello;Bello",
		"81000001;Ana Pérez;;asociado;72000001;Bello;Medellín",
		"81000002;Luis Gil;;asociado;71000001;No sé;Bello",
		"81000003;Rosa Díaz;;asociado;55555555;Yarumal;Yarumal",
		"12;Cédula Mala;;asociado;;;",
		"81000001;Ana Repetida;;asociado;;;",
		";;;;;;",
	}, "\n")

	result, err := ts.imports.Import(ctx, adminIdentity, strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 6, result.Rows)
	assert.EqualValues(t, 4, result.Inserted)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 6, result.Errors[0].Row)
	assert.Equal(t, 7, result.Errors[1].Row)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "81000003", result.Warnings[0].Cedula)

	mario := mustFind(t, ts, "72000001")
	assert.Equal(t, "72000001", *mario.CedulaLider)
	assert.Equal(t, "72000001", *mustFind(t, ts, "81000001").CedulaLider)
	assert.Equal(t, models.EstadoRechazado, mustFind(t, ts, "81000001").Estado)
	assert.Equal(t, models.EstadoPendiente, mustFind(t, ts, "81000002").Estado)
	assert.Nil(t, mustFind(t, ts, "81000003").CedulaLider)

	t.Run("re-import updates by cedula", func(t *testing.T) {
		result, err := ts.imports.Import(ctx, adminIdentity, strings.NewReader("cedula,nombre,municipio puesto\n81000003,Rosa Díaz,Bello\n"))
		require.NoError(t, err)
		assert.Zero(t, result.Inserted)
		assert.EqualValues(t, 1, result.Updated)

		count, err := ts.env.MongoDB.Collection("personas").CountDocuments(ctx, bson.M{"cedula": "81000003"})
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("unmappable file", func(t *testing.T) {
		_, err := ts.imports.Import(ctx, adminIdentity, strings.NewReader("foo,bar\n1,2\n"))
		assert.ErrorIs(t, err, models.ErrUnmappableHeaders)
	})

	t.Run("header only", func(t *testing.T) {
		_, err := ts.imports.Import(ctx, adminIdentity, strings.NewReader("cedula,nombre\n"))
		assert.ErrorIs(t, err, models.ErrEmptyImport)
	})

	t.Run("admin only", func(t *testing.T) {
		_, err := ts.imports.Import(ctx, leaderIdentity("71000001"), strings.NewReader(csv))
		assert.ErrorIs(t, err, models.ErrForbidden)
	})
}

func TestImportService_DemotingLeaderWithTeam(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.seedLeader(t, "71000001", "Laura Gómez")
	ts.seedLeader(t, "71000002", "Pedro Mejía")
	members := ts.seedMembers(t, "71000001", models.RolAsociado, "8100", 1)

	csv := strings.Join([]string{
		"cedula,nombre,rol,cedula lider",
		"71000001,Laura Gómez,asociado,",
		"71000002,Pedro Mejía,impulsor,",
		"82000001,Nora Vélez,asociado,71000002",
	}, "\n")

	result, err := ts.imports.Import(ctx, adminIdentity, strings.NewReader(csv))
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, "71000001", result.Errors[0].Cedula)
	assert.Equal(t, 1, result.Failed)

	laura := mustFind(t, ts, "71000001")
	assert.Equal(t, models.RolLider, laura.Rol)
	assert.Equal(t, "71000001", *leaderOf(t, ts, members[0]))

	assert.Equal(t, models.RolImpulsor, mustFind(t, ts, "71000002").Rol)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "82000001", result.Warnings[0].Cedula)
	assert.Nil(t, leaderOf(t, ts, "82000001"))
}
