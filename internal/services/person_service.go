package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/observability"
	"github.com/crm-electoral/app-crm/internal/rules"
	"github.com/crm-electoral/app-crm/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// reservedLeaderValue is the legacy marker for "assigned to the admin team".
// It is never stored; such people are unassigned.
const reservedLeaderValue = "admin"

// PersonFilter narrows a person listing
type PersonFilter struct {
	Rol         models.Rol
	Estado      models.Estado
	Municipio   string
	CedulaLider string
	Search      string
}

// PersonService handles registration, lookup and edits of persons
type PersonService struct {
	database  *mongo.Database
	cache     *CacheService
	promotion *PromotionService
	logger    *logging.SafeLogger
	now       func() time.Time
}

// NewPersonService creates a new person service
func NewPersonService(database *mongo.Database, cache *CacheService, promotion *PromotionService, logger *logging.SafeLogger) *PersonService {
	return &PersonService{
		database:  database,
		cache:     cache,
		promotion: promotion,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *PersonService) collection() *mongo.Collection {
	return s.database.Collection(config.AppConfig.PersonCollection)
}

// Register creates a person on behalf of an admin or leader session. Leader
// sessions always register under themselves and cannot create leaders.
func (s *PersonService) Register(ctx context.Context, identity models.SessionIdentity, input models.PersonInput) (*models.Person, error) {
	var leader *string
	switch {
	case identity.IsAdmin():
		if input.Rol != models.RolLider && input.CedulaLider != nil {
			leader = leaderReference(*input.CedulaLider)
		}
	case identity.Role == models.SessionLider:
		if input.Rol == models.RolLider {
			return nil, models.ErrForbidden
		}
		own := identity.Cedula
		leader = &own
	default:
		return nil, models.ErrForbidden
	}

	return s.register(ctx, input, leader)
}

// SelfRegister handles the public invitation form. The leader in the link
// must exist and only team roles can be chosen.
func (s *PersonService) SelfRegister(ctx context.Context, leaderCedula string, input models.PersonInput) (*models.Person, error) {
	if input.Rol == "" {
		input.Rol = models.RolAsociado
	}
	if !input.Rol.IsTeamMember() {
		return nil, fmt.Errorf("%w: solo se permite registrarse como asociado o impulsor", models.ErrInvalidRol)
	}

	leader := utils.NormalizeCedula(leaderCedula)
	return s.register(ctx, input, &leader)
}

func (s *PersonService) register(ctx context.Context, input models.PersonInput, leader *string) (*models.Person, error) {
	ctx, span, done := utils.TraceOperation(ctx, "person.register", map[string]interface{}{"rol": string(input.Rol)})
	defer done()

	input.Cedula = utils.NormalizeCedula(input.Cedula)
	if result := utils.ValidatePersonInput(input); !result.IsValid {
		return nil, result
	}

	now := s.now()
	person := &models.Person{
		Cedula:            input.Cedula,
		NombreCompleto:    strings.TrimSpace(input.NombreCompleto),
		Telefono:          normalizedPhone(input.Telefono),
		Email:             trimmedOrNil(input.Email),
		Rol:               input.Rol,
		CedulaLider:       leader,
		MunicipioVotacion: canonicalMunicipio(input.MunicipioVotacion),
		MunicipioPuesto:   canonicalMunicipio(input.MunicipioPuesto),
		PuestoVotacion:    trimmedOrNil(input.PuestoVotacion),
		MesaVotacion:      trimmedOrNil(input.MesaVotacion),
		VotosPrometidos:   input.VotosPrometidos,
		Notas:             trimmedOrNil(input.Notas),
		FechaRegistro:     now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if person.Rol == models.RolLider {
		self := person.Cedula
		person.CedulaLider = &self
	}
	applyDerivedStatus(person)

	var err error
	if person.Rol.IsTeamMember() && person.CedulaLider != nil {
		err = utils.ExecuteWithTransaction(ctx, s.database.Client(), "register", func(sessCtx mongo.SessionContext) error {
			if err := s.reserveTeamSlot(sessCtx, *person.CedulaLider, person.Rol, ""); err != nil {
				return err
			}
			_, err := s.collection().InsertOne(sessCtx, person)
			return err
		})
	} else {
		_, err = s.collection().InsertOne(ctx, person)
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			err = models.ErrDuplicateCedula
		}
		if errors.Is(err, models.ErrCapacityExceeded) {
			observability.CapacityRejections.WithLabelValues(string(person.Rol)).Inc()
		}
		observability.DatabaseOperations.WithLabelValues("insert_person", "error").Inc()
		utils.RecordErrorInSpan(span, err, nil)
		return nil, err
	}

	observability.DatabaseOperations.WithLabelValues("insert_person", "success").Inc()
	observability.Registrations.WithLabelValues(string(person.Rol), string(person.Estado)).Inc()
	s.cache.InvalidateDashboards(ctx, stringValue(person.CedulaLider))

	s.logger.Info("person registered",
		zap.String("cedula", observability.MaskCedula(person.Cedula)),
		zap.String("rol", string(person.Rol)),
		zap.String("estado", string(person.Estado)))

	return person, nil
}

// reserveTeamSlot must run inside a transaction. It writes the leader
// document first so concurrent registrations under the same leader conflict
// and get retried, then checks the per-role count. exclude leaves one cedula
// out of the count, used when a member moves within the team.
func (s *PersonService) reserveTeamSlot(sessCtx mongo.SessionContext, leader string, rol models.Rol, exclude string) error {
	return reserveTeamSlot(sessCtx, s.collection(), leader, rol, exclude)
}

func reserveTeamSlot(sessCtx mongo.SessionContext, coll *mongo.Collection, leader string, rol models.Rol, exclude string) error {
	var leaderDoc models.Person
	err := coll.FindOneAndUpdate(sessCtx,
		bson.M{"cedula": leader},
		bson.M{"$inc": bson.M{"team_version": 1}},
	).Decode(&leaderDoc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.ErrLeaderNotFound
		}
		return fmt.Errorf("failed to lock leader: %w", err)
	}
	if !leaderDoc.IsLeader() {
		return models.ErrNotALeader
	}

	excluded := []string{leader}
	if exclude != "" {
		excluded = append(excluded, exclude)
	}
	count, err := coll.CountDocuments(sessCtx, bson.M{
		"cedula_lider": leader,
		"rol":          rol,
		"cedula":       bson.M{"$nin": excluded},
	})
	if err != nil {
		return fmt.Errorf("failed to count team: %w", err)
	}
	if !rules.CanAddAssociate(int(count)) {
		return models.ErrCapacityExceeded
	}
	return nil
}

// Get returns one person. Leaders may only read themselves and their team.
func (s *PersonService) Get(ctx context.Context, identity models.SessionIdentity, cedula string) (*models.Person, error) {
	person, err := s.find(ctx, utils.NormalizeCedula(cedula))
	if err != nil {
		return nil, err
	}
	if !canRead(identity, person) {
		return nil, models.ErrForbidden
	}
	return person, nil
}

func canRead(identity models.SessionIdentity, person *models.Person) bool {
	return identity.IsAdmin() || person.Cedula == identity.Cedula || identity.CanManage(person.CedulaLider)
}

func (s *PersonService) find(ctx context.Context, cedula string) (*models.Person, error) {
	var person models.Person
	err := s.collection().FindOne(ctx, bson.M{"cedula": cedula}).Decode(&person)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrPersonNotFound
		}
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return &person, nil
}

// List returns a page of persons. Leader sessions only see their own team.
func (s *PersonService) List(ctx context.Context, identity models.SessionIdentity, filter PersonFilter, page, perPage int) (*models.PersonListResponse, error) {
	if !identity.IsAdmin() {
		if identity.Role != models.SessionLider {
			return nil, models.ErrForbidden
		}
		filter.CedulaLider = identity.Cedula
	}

	query, err := buildPersonQuery(filter)
	if err != nil {
		return nil, err
	}

	total, err := s.collection().CountDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count persons: %w", err)
	}

	findOptions := options.Find().
		SetSkip(int64((page - 1) * perPage)).
		SetLimit(int64(perPage)).
		SetSort(bson.D{{Key: "fecha_registro", Value: -1}, {Key: "cedula", Value: 1}})

	cursor, err := s.collection().Find(ctx, query, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	defer cursor.Close(ctx)

	personas := []models.Person{}
	if err := cursor.All(ctx, &personas); err != nil {
		return nil, fmt.Errorf("failed to decode persons: %w", err)
	}

	return &models.PersonListResponse{
		Personas: personas,
		Pagination: models.PaginationInfo{
			Page:       page,
			PerPage:    perPage,
			Total:      int(total),
			TotalPages: totalPages(total, perPage),
		},
	}, nil
}

func buildPersonQuery(filter PersonFilter) (bson.M, error) {
	query := bson.M{}
	if filter.Rol != "" {
		if !filter.Rol.Valid() {
			return nil, models.ErrInvalidRol
		}
		query["rol"] = filter.Rol
	}
	if filter.Estado != "" {
		if !filter.Estado.Valid() {
			return nil, models.ErrInvalidEstado
		}
		query["estado"] = filter.Estado
	}
	if filter.Municipio != "" {
		if filter.Municipio == rules.UndefinedMunicipio {
			query["municipio_puesto"] = bson.M{"$in": bson.A{nil, ""}}
		} else if canonical, ok := rules.CanonicalMunicipio(filter.Municipio); ok {
			query["municipio_puesto"] = canonical
		} else {
			query["municipio_puesto"] = strings.TrimSpace(filter.Municipio)
		}
	}
	if filter.CedulaLider != "" {
		query["cedula_lider"] = filter.CedulaLider
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := regexp.QuoteMeta(search)
		query["$or"] = bson.A{
			bson.M{"nombre_completo": primitive.Regex{Pattern: pattern, Options: "i"}},
			bson.M{"cedula": primitive.Regex{Pattern: "^" + pattern}},
		}
	}
	return query, nil
}

// Team returns a leader with its direct asociados and impulsores
func (s *PersonService) Team(ctx context.Context, identity models.SessionIdentity, leaderCedula string) (*models.TeamResponse, error) {
	leaderCedula = utils.NormalizeCedula(leaderCedula)
	if !identity.IsAdmin() && identity.Cedula != leaderCedula {
		return nil, models.ErrForbidden
	}

	leader, err := s.find(ctx, leaderCedula)
	if err != nil {
		if errors.Is(err, models.ErrPersonNotFound) {
			return nil, models.ErrLeaderNotFound
		}
		return nil, err
	}
	if !leader.IsLeader() {
		return nil, models.ErrNotALeader
	}

	cursor, err := s.collection().Find(ctx,
		bson.M{"cedula_lider": leaderCedula, "cedula": bson.M{"$ne": leaderCedula}},
		options.Find().SetSort(bson.D{{Key: "nombre_completo", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list team: %w", err)
	}
	defer cursor.Close(ctx)

	var members []models.Person
	if err := cursor.All(ctx, &members); err != nil {
		return nil, fmt.Errorf("failed to decode team: %w", err)
	}

	team := &models.TeamResponse{
		Lider:      *leader,
		Asociados:  []models.Person{},
		Impulsores: []models.Person{},
		Capacidad:  rules.MaxTeamSize,
	}
	for _, m := range members {
		switch m.Rol {
		case models.RolAsociado:
			team.Asociados = append(team.Asociados, m)
		case models.RolImpulsor:
			team.Impulsores = append(team.Impulsores, m)
		}
	}
	return fillCupos(team), nil
}

// Update applies a profile edit. Changing estado, rol or the leader is
// reserved to admins; a role change to lider runs the promotion.
func (s *PersonService) Update(ctx context.Context, identity models.SessionIdentity, cedula string, patch models.PersonPatch) (*models.Person, error) {
	ctx, span, done := utils.TraceOperation(ctx, "person.update", nil)
	defer done()

	cedula = utils.NormalizeCedula(cedula)
	existing, err := s.find(ctx, cedula)
	if err != nil {
		return nil, err
	}
	if !canRead(identity, existing) {
		return nil, models.ErrForbidden
	}
	if !identity.IsAdmin() && (patch.Estado != nil || patch.Rol != nil || patch.CedulaLider != nil || patch.ClearLider) {
		return nil, models.ErrForbidden
	}

	targetRol := existing.Rol
	if patch.Rol != nil {
		targetRol = *patch.Rol
	}
	if result := utils.ValidatePersonPatch(patch, targetRol); !result.IsValid {
		return nil, result
	}

	if targetRol == models.RolLider && !existing.IsLeader() {
		if _, err := s.promotion.PromoteToLeader(ctx, identity, cedula, patch.AssignedCedulas); err != nil {
			return nil, err
		}
		if existing, err = s.find(ctx, cedula); err != nil {
			return nil, err
		}
	}

	updated := *existing
	applyPatch(&updated, patch)

	newLeader, err := s.resolveLeaderChange(ctx, existing, targetRol, patch)
	if err != nil {
		return nil, err
	}
	updated.Rol = targetRol
	updated.CedulaLider = newLeader

	municipioChanged := patch.MunicipioVotacion != nil || patch.MunicipioPuesto != nil
	if patch.Estado != nil {
		updated.Estado = *patch.Estado
		updated.VotaEnBello = rules.VotaEn(updated.MunicipioPuesto, config.AppConfig.DistinguishedMunicipality)
	} else if municipioChanged {
		applyDerivedStatus(&updated)
	}
	updated.UpdatedAt = s.now()

	set := personSetDocument(&updated)
	leaderMoved := stringValue(existing.CedulaLider) != stringValue(updated.CedulaLider) || existing.Rol != updated.Rol
	if leaderMoved && updated.Rol.IsTeamMember() && updated.CedulaLider != nil {
		err = utils.ExecuteWithTransaction(ctx, s.database.Client(), "reassign", func(sessCtx mongo.SessionContext) error {
			if err := s.reserveTeamSlot(sessCtx, *updated.CedulaLider, updated.Rol, updated.Cedula); err != nil {
				return err
			}
			return s.updateOne(sessCtx, existing, set)
		})
	} else {
		err = s.updateOne(ctx, existing, set)
	}
	if err != nil {
		if errors.Is(err, models.ErrCapacityExceeded) {
			observability.CapacityRejections.WithLabelValues(string(updated.Rol)).Inc()
		}
		utils.RecordErrorInSpan(span, err, nil)
		return nil, err
	}

	s.cache.InvalidateDashboards(ctx, stringValue(existing.CedulaLider), stringValue(updated.CedulaLider))
	s.logger.Info("person updated",
		zap.String("cedula", observability.MaskCedula(cedula)),
		zap.String("rol", string(updated.Rol)),
		zap.String("estado", string(updated.Estado)))

	return &updated, nil
}

// resolveLeaderChange returns the cedula_lider the person has after patch
func (s *PersonService) resolveLeaderChange(ctx context.Context, existing *models.Person, targetRol models.Rol, patch models.PersonPatch) (*string, error) {
	if targetRol == models.RolLider {
		self := existing.Cedula
		return &self, nil
	}

	if existing.IsLeader() {
		// Demotion: only an empty team can be dissolved.
		count, err := s.collection().CountDocuments(ctx, bson.M{
			"cedula_lider": existing.Cedula,
			"cedula":       bson.M{"$ne": existing.Cedula},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to count team: %w", err)
		}
		if count > 0 {
			return nil, fmt.Errorf("%w: el líder aún tiene %d integrantes", models.ErrInvalidAssignment, count)
		}
		if patch.CedulaLider == nil {
			return nil, nil
		}
	}

	switch {
	case patch.ClearLider:
		return nil, nil
	case patch.CedulaLider != nil:
		ref := leaderReference(*patch.CedulaLider)
		if ref != nil && *ref == existing.Cedula {
			return nil, fmt.Errorf("%w: una persona no puede ser su propio líder", models.ErrInvalidAssignment)
		}
		return ref, nil
	default:
		return existing.CedulaLider, nil
	}
}

// updateOne writes set only while the stored role and leader still match
// existing, so a concurrent promotion or reassignment is not reverted.
func (s *PersonService) updateOne(ctx context.Context, existing *models.Person, set bson.M) error {
	filter := bson.M{
		"cedula":       existing.Cedula,
		"rol":          existing.Rol,
		"cedula_lider": existing.CedulaLider,
	}
	result, err := s.collection().UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		observability.DatabaseOperations.WithLabelValues("update_person", "error").Inc()
		return fmt.Errorf("failed to update person: %w", err)
	}
	if result.MatchedCount == 0 {
		observability.DatabaseOperations.WithLabelValues("update_person", "conflict").Inc()
		if _, err := s.find(ctx, existing.Cedula); err != nil {
			return err
		}
		return models.ErrConcurrentUpdate
	}
	observability.DatabaseOperations.WithLabelValues("update_person", "success").Inc()
	return nil
}

// SetEstado approves or rejects a registrant. Admin only.
func (s *PersonService) SetEstado(ctx context.Context, identity models.SessionIdentity, cedula string, req models.EstadoRequest) (*models.Person, error) {
	if !identity.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if !req.Estado.Valid() {
		return nil, models.ErrInvalidEstado
	}

	set := bson.M{"estado": req.Estado, "updated_at": s.now()}
	if req.Notas != nil {
		set["notas"] = strings.TrimSpace(*req.Notas)
	}

	var person models.Person
	err := s.collection().FindOneAndUpdate(ctx,
		bson.M{"cedula": utils.NormalizeCedula(cedula)},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&person)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrPersonNotFound
		}
		return nil, fmt.Errorf("failed to set estado: %w", err)
	}

	s.cache.InvalidateDashboards(ctx, stringValue(person.CedulaLider))
	return &person, nil
}

func applyPatch(p *models.Person, patch models.PersonPatch) {
	if patch.NombreCompleto != nil {
		p.NombreCompleto = strings.TrimSpace(*patch.NombreCompleto)
	}
	if patch.Telefono != nil {
		p.Telefono = normalizedPhone(patch.Telefono)
	}
	if patch.Email != nil {
		p.Email = trimmedOrNil(patch.Email)
	}
	if patch.MunicipioVotacion != nil {
		p.MunicipioVotacion = canonicalMunicipio(patch.MunicipioVotacion)
	}
	if patch.MunicipioPuesto != nil {
		p.MunicipioPuesto = canonicalMunicipio(patch.MunicipioPuesto)
	}
	if patch.PuestoVotacion != nil {
		p.PuestoVotacion = trimmedOrNil(patch.PuestoVotacion)
	}
	if patch.MesaVotacion != nil {
		p.MesaVotacion = trimmedOrNil(patch.MesaVotacion)
	}
	if patch.VotosPrometidos != nil {
		p.VotosPrometidos = *patch.VotosPrometidos
	}
	if patch.Notas != nil {
		p.Notas = trimmedOrNil(patch.Notas)
	}
}

func personSetDocument(p *models.Person) bson.M {
	return bson.M{
		"nombre_completo":    p.NombreCompleto,
		"telefono":           p.Telefono,
		"email":              p.Email,
		"rol":                p.Rol,
		"cedula_lider":       p.CedulaLider,
		"municipio_votacion": p.MunicipioVotacion,
		"municipio_puesto":   p.MunicipioPuesto,
		"puesto_votacion":    p.PuestoVotacion,
		"mesa_votacion":      p.MesaVotacion,
		"vota_en_bello":      p.VotaEnBello,
		"votos_prometidos":   p.VotosPrometidos,
		"estado":             p.Estado,
		"notas":              p.Notas,
		"updated_at":         p.UpdatedAt,
	}
}

// applyDerivedStatus sets estado and vota_en_bello from the municipalities
func applyDerivedStatus(p *models.Person) {
	p.Estado = rules.DeriveEstado(p.MunicipioVotacion, p.MunicipioPuesto)
	p.VotaEnBello = rules.VotaEn(p.MunicipioPuesto, config.AppConfig.DistinguishedMunicipality)
}

// leaderReference turns user input into a stored leader reference. Blank
// values and the legacy admin marker mean unassigned.
func leaderReference(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, reservedLeaderValue) {
		return nil
	}
	cedula := utils.NormalizeCedula(trimmed)
	return &cedula
}

func canonicalMunicipio(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	if canonical, ok := rules.CanonicalMunicipio(trimmed); ok {
		return &canonical
	}
	return &trimmed
}

func normalizedPhone(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	if parsed, err := utils.ParsePhoneNumber(*v); err == nil {
		return &parsed.National
	}
	digits := utils.NormalizePhone(*v)
	return &digits
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
