package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/observability"
	"github.com/crm-electoral/app-crm/internal/rules"
	"github.com/crm-electoral/app-crm/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// PuestoService serves the municipality dropdown and the voting places table
type PuestoService struct {
	database *mongo.Database
	logger   *logging.SafeLogger
}

// NewPuestoService creates a new puesto service
func NewPuestoService(database *mongo.Database, logger *logging.SafeLogger) *PuestoService {
	return &PuestoService{database: database, logger: logger}
}

// Municipios returns the Antioquia municipalities followed by the "No Se" option
func (s *PuestoService) Municipios() []string {
	list := rules.MunicipiosAntioquia()
	return append(list, models.MunicipioDesconocido)
}

// Puestos lists the voting places of a municipality. The municipality is
// matched through the normalizer so any spelling of a known name works.
func (s *PuestoService) Puestos(ctx context.Context, municipio string) ([]models.PuestoVotacion, error) {
	canonical, ok := rules.CanonicalMunicipio(municipio)
	if !ok || canonical == models.MunicipioDesconocido {
		return []models.PuestoVotacion{}, nil
	}

	ctx, span, done := utils.TraceDatabaseOperation(ctx, "find", config.AppConfig.PuestoCollection)
	defer done()

	cursor, err := s.database.Collection(config.AppConfig.PuestoCollection).Find(ctx,
		bson.M{"municipio": canonical},
		options.Find().SetSort(bson.D{{Key: "puesto", Value: 1}}))
	if err != nil {
		utils.RecordErrorInSpan(span, err, map[string]interface{}{"puesto.municipio": canonical})
		return nil, fmt.Errorf("failed to query puestos: %w", err)
	}

	puestos := []models.PuestoVotacion{}
	if err := cursor.All(ctx, &puestos); err != nil {
		return nil, fmt.Errorf("failed to decode puestos: %w", err)
	}
	return puestos, nil
}

// Mesas returns the table numbers of one voting place, 1..mesas
func (s *PuestoService) Mesas(ctx context.Context, municipio, puesto string) ([]string, error) {
	puestos, err := s.Puestos(ctx, municipio)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(puestos))
	for i, p := range puestos {
		names[i] = p.Puesto
	}
	name, ok := rules.Canonicalize(puesto, names)
	if !ok {
		return []string{}, nil
	}
	for _, p := range puestos {
		if p.Puesto != name {
			continue
		}
		mesas := make([]string, 0, p.Mesas)
		for i := 1; i <= p.Mesas; i++ {
			mesas = append(mesas, strconv.Itoa(i))
		}
		return mesas, nil
	}
	return []string{}, nil
}

// UpsertPuestos loads voting places keyed by municipality and name. Rows with
// a municipality outside Antioquia are skipped and counted.
func (s *PuestoService) UpsertPuestos(ctx context.Context, puestos []models.PuestoVotacion) (int64, int, error) {
	var writes []mongo.WriteModel
	skipped := 0
	for _, p := range puestos {
		canonical, ok := rules.CanonicalMunicipio(p.Municipio)
		name := strings.TrimSpace(p.Puesto)
		if !ok || canonical == models.MunicipioDesconocido || name == "" {
			skipped++
			continue
		}
		p.Municipio = canonical
		p.Puesto = name
		if p.Departamento == "" {
			p.Departamento = "Antioquia"
		}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"municipio": p.Municipio, "puesto": p.Puesto}).
			SetReplacement(p).
			SetUpsert(true))
	}
	if len(writes) == 0 {
		return 0, skipped, nil
	}

	result, err := s.database.Collection(config.AppConfig.PuestoCollection).
		BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		observability.DatabaseOperations.WithLabelValues("upsert_puestos", "error").Inc()
		return 0, skipped, fmt.Errorf("failed to upsert puestos: %w", err)
	}
	observability.DatabaseOperations.WithLabelValues("upsert_puestos", "success").Inc()

	s.logger.Info("puestos loaded",
		zap.Int64("upserted", result.UpsertedCount),
		zap.Int64("modified", result.ModifiedCount),
		zap.Int("skipped", skipped))
	return result.UpsertedCount + result.ModifiedCount, skipped, nil
}

// PuestoMunicipios lists the municipalities that have at least one voting place
func (s *PuestoService) PuestoMunicipios(ctx context.Context) ([]string, error) {
	values, err := s.database.Collection(config.AppConfig.PuestoCollection).Distinct(ctx, "municipio", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list municipios: %w", err)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if name, ok := v.(string); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

var puestoHeaderAliases = map[string][]string{
	"departamento": {"departamento", "dpto"},
	"municipio":    {"municipio", "nombre municipio", "mpio"},
	"puesto":       {"puesto", "puesto de votacion", "puesto votacion", "nombre puesto"},
	"direccion":    {"direccion", "direccion puesto"},
	"mesas":        {"mesas", "numero de mesas", "total mesas"},
}

// ParsePuestosCSV reads a voting places table exported from the registrar.
// Municipio and puesto columns are required; mesas must be a number when present.
func ParsePuestosCSV(r io.Reader) ([]models.PuestoVotacion, error) {
	records, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, models.ErrEmptyImport
	}

	columns := map[string]int{}
	for i, header := range records[0] {
		key := rules.Normalize(strings.TrimPrefix(header, "\ufeff"))
		for field, aliases := range puestoHeaderAliases {
			if _, taken := columns[field]; taken {
				continue
			}
			for _, alias := range aliases {
				if key == rules.Normalize(alias) {
					columns[field] = i
					break
				}
			}
		}
	}
	if _, ok := columns["municipio"]; !ok {
		return nil, fmt.Errorf("%w: falta la columna municipio", models.ErrUnmappableHeaders)
	}
	if _, ok := columns["puesto"]; !ok {
		return nil, fmt.Errorf("%w: falta la columna puesto", models.ErrUnmappableHeaders)
	}

	cell := func(record []string, field string) string {
		i, ok := columns[field]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	puestos := make([]models.PuestoVotacion, 0, len(records)-1)
	for n, record := range records[1:] {
		if blankRecord(record) {
			continue
		}
		p := models.PuestoVotacion{
			Departamento: cell(record, "departamento"),
			Municipio:    cell(record, "municipio"),
			Puesto:       cell(record, "puesto"),
			Direccion:    cell(record, "direccion"),
		}
		if raw := cell(record, "mesas"); raw != "" {
			mesas, err := strconv.Atoi(raw)
			if err != nil || mesas < 0 {
				return nil, fmt.Errorf("%w: fila %d: mesas inválidas %q", models.ErrValidation, n+2, raw)
			}
			p.Mesas = mesas
		}
		puestos = append(puestos, p)
	}
	return puestos, nil
}
