package services

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

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
	"gopkg.in/yaml.v3"
)

//go:embed import_aliases.yaml
var defaultAliases []byte

// Canonical import fields
const (
	FieldCedula            = "cedula"
	FieldNombreCompleto    = "nombre_completo"
	FieldTelefono          = "telefono"
	FieldEmail             = "email"
	FieldRol               = "rol"
	FieldCedulaLider       = "cedula_lider"
	FieldMunicipioVotacion = "municipio_votacion"
	FieldMunicipioPuesto   = "municipio_puesto"
	FieldPuestoVotacion    = "puesto_votacion"
	FieldMesaVotacion      = "mesa_votacion"
	FieldVotaEnBello       = "vota_en_bello"
	FieldVotosPrometidos   = "votos_prometidos"
	FieldEstado            = "estado"
	FieldNotas             = "notas"
)

var requiredImportFields = []string{FieldCedula, FieldNombreCompleto}

// ColumnAliases maps each canonical field to the header spellings accepted for it
type ColumnAliases map[string][]string

// LoadColumnAliases reads the alias table from path, or the built-in table
// when path is empty.
func LoadColumnAliases(path string) (ColumnAliases, error) {
	if path == "" {
		return ParseColumnAliases(defaultAliases)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read column aliases: %w", err)
	}
	return ParseColumnAliases(raw)
}

// ParseColumnAliases decodes a YAML alias table. Two fields may not share an alias.
func ParseColumnAliases(raw []byte) (ColumnAliases, error) {
	var aliases ColumnAliases
	if err := yaml.Unmarshal(raw, &aliases); err != nil {
		return nil, fmt.Errorf("invalid column aliases: %w", err)
	}

	owner := map[string]string{}
	for field, names := range aliases {
		for _, name := range append([]string{field}, names...) {
			key := rules.Normalize(name)
			if prev, ok := owner[key]; ok && prev != field {
				return nil, fmt.Errorf("invalid column aliases: %q used by %s and %s", name, prev, field)
			}
			owner[key] = field
		}
	}
	for _, field := range requiredImportFields {
		if _, ok := aliases[field]; !ok {
			return nil, fmt.Errorf("invalid column aliases: missing required field %s", field)
		}
	}
	return aliases, nil
}

// ResolveHeaders maps each canonical field to its column index. The first
// column matching a field wins. Files without every required field are rejected.
func (a ColumnAliases) ResolveHeaders(headers []string) (map[string]int, error) {
	lookup := map[string]string{}
	for field, names := range a {
		lookup[rules.Normalize(field)] = field
		for _, name := range names {
			lookup[rules.Normalize(name)] = field
		}
	}

	columns := map[string]int{}
	for i, h := range headers {
		field, ok := lookup[rules.Normalize(strings.TrimPrefix(h, "\ufeff"))]
		if !ok {
			continue
		}
		if _, seen := columns[field]; !seen {
			columns[field] = i
		}
	}

	var missing []string
	for _, field := range requiredImportFields {
		if _, ok := columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: faltan %s", models.ErrUnmappableHeaders, strings.Join(missing, ", "))
	}
	return columns, nil
}

// ImportService loads spreadsheet exports into the personas collection
type ImportService struct {
	database *mongo.Database
	cache    *CacheService
	aliases  ColumnAliases
	logger   *logging.SafeLogger
	now      func() time.Time
}

// NewImportService creates a new import service
func NewImportService(database *mongo.Database, cache *CacheService, aliases ColumnAliases, logger *logging.SafeLogger) *ImportService {
	return &ImportService{
		database: database,
		cache:    cache,
		aliases:  aliases,
		logger:   logger,
		now:      time.Now,
	}
}

type importRow struct {
	line   int
	person models.Person
	// rawLeader is the leader cedula as written, checked after parsing
	rawLeader string
}

// Import reads a CSV export and upserts every valid row by cedula. Comma and
// semicolon separated files are accepted. Rejected rows and warnings are
// reported in the result; only unreadable files or database failures return
// an error.
func (s *ImportService) Import(ctx context.Context, identity models.SessionIdentity, r io.Reader) (*models.ImportResult, error) {
	if !identity.IsAdmin() {
		return nil, models.ErrForbidden
	}

	return utils.MonitorFunctionWithResult(ctx, "import_personas", func(pm *utils.PerformanceMonitor) (*models.ImportResult, error) {
		records, err := readCSV(r)
		if err != nil {
			return nil, err
		}
		if len(records) < 2 {
			return nil, models.ErrEmptyImport
		}
		columns, err := s.aliases.ResolveHeaders(records[0])
		if err != nil {
			return nil, err
		}
		pm.Checkpoint("parsed")

		result := &models.ImportResult{Rows: len(records) - 1}
		rows := s.canonicalizeRows(records[1:], columns, result)
		if rows, err = s.checkLeaders(ctx, rows, result); err != nil {
			return nil, err
		}
		pm.Checkpoint("canonicalized")

		if err := s.write(ctx, rows, result); err != nil {
			return nil, err
		}
		pm.Checkpoint("written")

		leaders := leadersOf(rows)
		if err := s.capacityWarnings(ctx, leaders, result); err != nil {
			s.logger.Warn("failed to check team capacity after import", zap.Error(err))
		}
		s.cache.InvalidateDashboards(ctx, leaders...)

		result.Failed = len(result.Errors)
		observability.ImportedRows.WithLabelValues("inserted").Add(float64(result.Inserted))
		observability.ImportedRows.WithLabelValues("updated").Add(float64(result.Updated))
		observability.ImportedRows.WithLabelValues("failed").Add(float64(result.Failed))

		s.logger.Info("import finished",
			zap.Int("rows", result.Rows),
			zap.Int64("inserted", result.Inserted),
			zap.Int64("updated", result.Updated),
			zap.Int("failed", result.Failed),
			zap.Int("warnings", len(result.Warnings)))
		return result, nil
	})
}

func readCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}
	header := string(first)
	if i := strings.IndexByte(header, '\n'); i >= 0 {
		header = header[:i]
	}

	reader := csv.NewReader(br)
	if strings.Count(header, ";") > strings.Count(header, ",") {
		reader.Comma = ';'
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return records, nil
}

func (s *ImportService) canonicalizeRows(records [][]string, columns map[string]int, result *models.ImportResult) []importRow {
	seen := map[string]int{}
	rows := make([]importRow, 0, len(records))
	for i, record := range records {
		line := i + 2
		if blankRecord(record) {
			result.Rows--
			continue
		}
		row, warnings, err := s.canonicalizeRow(record, columns, line)
		cedula := cell(record, columns, FieldCedula)
		for _, w := range warnings {
			result.Warnings = append(result.Warnings, models.ImportRowError{Row: line, Cedula: cedula, Message: w})
		}
		if err != nil {
			result.Errors = append(result.Errors, models.ImportRowError{Row: line, Cedula: cedula, Message: err.Error()})
			continue
		}
		if prev, dup := seen[row.person.Cedula]; dup {
			result.Errors = append(result.Errors, models.ImportRowError{
				Row:     line,
				Cedula:  row.person.Cedula,
				Message: fmt.Sprintf("cédula repetida, ya aparece en la fila %d", prev),
			})
			continue
		}
		seen[row.person.Cedula] = line
		rows = append(rows, row)
	}
	return rows
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func cell(record []string, columns map[string]int, field string) string {
	i, ok := columns[field]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func optionalCell(record []string, columns map[string]int, field string) *string {
	v := cell(record, columns, field)
	if v == "" {
		return nil
	}
	return &v
}

// canonicalizeRow turns one CSV record into a person. Problems the row
// survives are returned as warnings.
func (s *ImportService) canonicalizeRow(record []string, columns map[string]int, line int) (importRow, []string, error) {
	var warnings []string

	cedula := utils.NormalizeCedula(cell(record, columns, FieldCedula))
	if !utils.ValidateCedula(cedula) {
		return importRow{}, nil, fmt.Errorf("cédula inválida")
	}
	nombre := strings.Join(strings.Fields(cell(record, columns, FieldNombreCompleto)), " ")
	if nombre == "" {
		return importRow{}, nil, fmt.Errorf("el nombre es obligatorio")
	}

	rol := models.RolAsociado
	if raw := cell(record, columns, FieldRol); raw != "" {
		parsed, ok := parseRol(raw)
		if !ok {
			return importRow{}, nil, fmt.Errorf("rol inválido: %s", raw)
		}
		rol = parsed
	}

	now := s.now()
	p := models.Person{
		Cedula:         cedula,
		NombreCompleto: nombre,
		Rol:            rol,
		PuestoVotacion: optionalCell(record, columns, FieldPuestoVotacion),
		MesaVotacion:   optionalCell(record, columns, FieldMesaVotacion),
		Notas:          optionalCell(record, columns, FieldNotas),
		FechaRegistro:  now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if raw := cell(record, columns, FieldTelefono); raw != "" {
		if phone, err := utils.ParsePhoneNumber(raw); err == nil {
			p.Telefono = &phone.National
		} else {
			warnings = append(warnings, fmt.Sprintf("teléfono ignorado: %s", raw))
		}
	}
	if raw := cell(record, columns, FieldEmail); raw != "" {
		if utils.ValidateEmail(raw) {
			email := strings.ToLower(raw)
			p.Email = &email
		} else {
			warnings = append(warnings, fmt.Sprintf("correo ignorado: %s", raw))
		}
	}

	for _, f := range []struct {
		field  string
		target **string
	}{
		{FieldMunicipioVotacion, &p.MunicipioVotacion},
		{FieldMunicipioPuesto, &p.MunicipioPuesto},
	} {
		raw := cell(record, columns, f.field)
		if raw == "" {
			continue
		}
		canonical, ok := rules.CanonicalMunicipio(raw)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("municipio desconocido en %s: %s", f.field, raw))
			canonical = raw
		}
		*f.target = &canonical
	}

	if raw := cell(record, columns, FieldVotosPrometidos); raw != "" {
		votos, err := strconv.Atoi(raw)
		switch {
		case err != nil || votos < 0:
			warnings = append(warnings, fmt.Sprintf("votos prometidos ignorados: %s", raw))
		case rol != models.RolImpulsor && votos > 0:
			warnings = append(warnings, "votos prometidos solo aplican a impulsores")
		default:
			p.VotosPrometidos = votos
		}
	}

	p.Estado = rules.DeriveEstado(p.MunicipioVotacion, p.MunicipioPuesto)
	if raw := cell(record, columns, FieldEstado); raw != "" {
		if estado := models.Estado(rules.Normalize(raw)); estado.Valid() {
			p.Estado = estado
		} else {
			warnings = append(warnings, fmt.Sprintf("estado ignorado: %s", raw))
		}
	}

	p.VotaEnBello = rules.VotaEn(p.MunicipioPuesto, config.AppConfig.DistinguishedMunicipality)
	if raw := cell(record, columns, FieldVotaEnBello); raw != "" {
		if v, ok := parseBool(raw); ok {
			p.VotaEnBello = v
		} else {
			warnings = append(warnings, fmt.Sprintf("valor de vota en bello ignorado: %s", raw))
		}
	}

	row := importRow{line: line, person: p}
	if rol == models.RolLider {
		p.CedulaLider = &cedula
		row.person = p
	} else if raw := cell(record, columns, FieldCedulaLider); raw != "" && !strings.EqualFold(raw, reservedLeaderValue) {
		row.rawLeader = utils.NormalizeCedula(raw)
	}
	return row, warnings, nil
}

func parseRol(raw string) (models.Rol, bool) {
	switch rules.Normalize(raw) {
	case "LIDER":
		return models.RolLider, true
	case "ASOCIADO", "ASOCIADA":
		return models.RolAsociado, true
	case "IMPULSOR", "IMPULSORA":
		return models.RolImpulsor, true
	}
	return "", false
}

func parseBool(raw string) (bool, bool) {
	switch rules.Normalize(raw) {
	case "SI", "S", "TRUE", "1", "X", "VERDADERO":
		return true, true
	case "NO", "N", "FALSE", "0", "FALSO":
		return false, true
	}
	return false, false
}

// checkLeaders resolves leader references against leaders in the file and
// in the database. Unknown leaders leave the row unassigned with a warning.
// A row that demotes a stored leader whose team is not empty is rejected and
// dropped from the returned rows.
func (s *ImportService) checkLeaders(ctx context.Context, rows []importRow, result *models.ImportResult) ([]importRow, error) {
	demoted, staffed, err := s.demotedLeaders(ctx, rows)
	if err != nil {
		return nil, err
	}

	kept := rows[:0]
	for _, r := range rows {
		if staffed[r.person.Cedula] {
			result.Errors = append(result.Errors, models.ImportRowError{
				Row:     r.line,
				Cedula:  r.person.Cedula,
				Message: "el líder aún tiene integrantes, reasígnelos antes de cambiar su rol",
			})
			continue
		}
		kept = append(kept, r)
	}
	rows = kept

	known := map[string]bool{}
	var lookup []string
	for _, r := range rows {
		if r.person.Rol == models.RolLider {
			known[r.person.Cedula] = true
		}
	}
	for _, r := range rows {
		if r.rawLeader != "" && !known[r.rawLeader] {
			lookup = append(lookup, r.rawLeader)
		}
	}

	if len(lookup) > 0 {
		values, err := s.database.Collection(config.AppConfig.PersonCollection).Distinct(ctx, "cedula",
			bson.M{"cedula": bson.M{"$in": dedupeCedulas(lookup, "")}, "rol": models.RolLider})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve leaders: %w", err)
		}
		for _, v := range values {
			if c, ok := v.(string); ok && !demoted[c] {
				known[c] = true
			}
		}
	}

	for i := range rows {
		leader := rows[i].rawLeader
		if leader == "" {
			continue
		}
		if !known[leader] {
			result.Warnings = append(result.Warnings, models.ImportRowError{
				Row:     rows[i].line,
				Cedula:  rows[i].person.Cedula,
				Message: fmt.Sprintf("líder %s no existe, la fila queda sin asignar", leader),
			})
			continue
		}
		rows[i].person.CedulaLider = &leader
	}
	return rows, nil
}

// demotedLeaders finds stored leaders the file imports with another role.
// staffed holds those that still have team members; the rest are demoted.
func (s *ImportService) demotedLeaders(ctx context.Context, rows []importRow) (demoted, staffed map[string]bool, err error) {
	demoted = map[string]bool{}
	staffed = map[string]bool{}

	var candidates []string
	for _, r := range rows {
		if r.person.Rol != models.RolLider {
			candidates = append(candidates, r.person.Cedula)
		}
	}
	if len(candidates) == 0 {
		return demoted, staffed, nil
	}

	coll := s.database.Collection(config.AppConfig.PersonCollection)
	leaders, err := coll.Distinct(ctx, "cedula", bson.M{"cedula": bson.M{"$in": candidates}, "rol": models.RolLider})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve demoted leaders: %w", err)
	}
	if len(leaders) == 0 {
		return demoted, staffed, nil
	}

	withTeam, err := coll.Distinct(ctx, "cedula_lider", bson.M{
		"cedula_lider": bson.M{"$in": leaders},
		"rol":          bson.M{"$in": bson.A{models.RolAsociado, models.RolImpulsor}},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count demoted teams: %w", err)
	}
	for _, v := range withTeam {
		if c, ok := v.(string); ok {
			staffed[c] = true
		}
	}
	for _, v := range leaders {
		if c, ok := v.(string); ok && !staffed[c] {
			demoted[c] = true
		}
	}
	return demoted, staffed, nil
}

func (s *ImportService) write(ctx context.Context, rows []importRow, result *models.ImportResult) error {
	if len(rows) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, 0, len(rows))
	for _, r := range rows {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"cedula": r.person.Cedula}).
			SetUpdate(bson.M{
				"$set": personSetDocument(&r.person),
				"$setOnInsert": bson.M{
					"cedula":         r.person.Cedula,
					"fecha_registro": r.person.FechaRegistro,
					"created_at":     r.person.CreatedAt,
				},
			}).
			SetUpsert(true))
	}

	res, err := s.database.Collection(config.AppConfig.PersonCollection).
		BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if res != nil {
		result.Inserted = res.UpsertedCount
		result.Updated = res.MatchedCount
	}
	if err != nil {
		var bulkErr mongo.BulkWriteException
		if !errors.As(err, &bulkErr) || bulkErr.WriteConcernError != nil {
			observability.DatabaseOperations.WithLabelValues("import", "error").Inc()
			return fmt.Errorf("failed to write import: %w", err)
		}
		for _, we := range bulkErr.WriteErrors {
			r := rows[we.Index]
			result.Errors = append(result.Errors, models.ImportRowError{Row: r.line, Cedula: r.person.Cedula, Message: we.Message})
		}
	}
	observability.DatabaseOperations.WithLabelValues("import", "success").Inc()
	return nil
}

func leadersOf(rows []importRow) []string {
	var leaders []string
	for _, r := range rows {
		if r.person.CedulaLider != nil {
			leaders = append(leaders, *r.person.CedulaLider)
		}
	}
	return dedupeCedulas(leaders, "")
}

// capacityWarnings reports leaders whose team went over the limit. Import
// loads historical data, so it warns instead of rejecting rows.
func (s *ImportService) capacityWarnings(ctx context.Context, leaders []string, result *models.ImportResult) error {
	if len(leaders) == 0 {
		return nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"cedula_lider": bson.M{"$in": leaders},
			"rol":          bson.M{"$in": bson.A{models.RolAsociado, models.RolImpulsor}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"lider": "$cedula_lider", "rol": "$rol"},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$match", Value: bson.M{"count": bson.M{"$gt": rules.MaxTeamSize}}}},
	}
	cursor, err := s.database.Collection(config.AppConfig.PersonCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	var over []struct {
		ID struct {
			Lider string     `bson:"lider"`
			Rol   models.Rol `bson:"rol"`
		} `bson:"_id"`
		Count int `bson:"count"`
	}
	if err := cursor.All(ctx, &over); err != nil {
		return err
	}
	for _, o := range over {
		result.Warnings = append(result.Warnings, models.ImportRowError{
			Cedula: o.ID.Lider,
			Message: fmt.Sprintf("el líder supera la capacidad de %d %ss (%d)",
				rules.MaxTeamSize, o.ID.Rol, o.Count),
		})
	}
	return nil
}
