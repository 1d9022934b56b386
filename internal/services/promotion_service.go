package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
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
)

// PromotionService turns a team member into a leader and rebuilds its team
type PromotionService struct {
	database *mongo.Database
	cache    *CacheService
	logger   *logging.SafeLogger
	now      func() time.Time
}

// NewPromotionService creates a new promotion service
func NewPromotionService(database *mongo.Database, cache *CacheService, logger *logging.SafeLogger) *PromotionService {
	return &PromotionService{
		database: database,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// PromoteToLeader makes cedula a leader whose team is exactly assigned.
// Everything runs in one transaction: the person becomes lider pointing at
// itself, every assigned cedula points at it, and former members left out
// of the list are unassigned. Calling it on an existing leader just
// replaces the team.
func (s *PromotionService) PromoteToLeader(ctx context.Context, identity models.SessionIdentity, cedula string, assigned []string) (*models.TeamResponse, error) {
	if !identity.IsAdmin() {
		return nil, models.ErrForbidden
	}

	ctx, span, done := utils.TraceOperation(ctx, "person.promote", map[string]interface{}{"assigned": len(assigned)})
	defer done()

	cedula = utils.NormalizeCedula(cedula)
	members := dedupeCedulas(assigned, cedula)
	coll := s.database.Collection(config.AppConfig.PersonCollection)

	var previousLeaders []string
	err := utils.ExecuteWithTransaction(ctx, s.database.Client(), "promote", func(sessCtx mongo.SessionContext) error {
		previousLeaders = previousLeaders[:0]

		var person models.Person
		err := coll.FindOneAndUpdate(sessCtx,
			bson.M{"cedula": cedula},
			bson.M{
				"$set": bson.M{"rol": models.RolLider, "cedula_lider": cedula, "updated_at": s.now()},
				"$inc": bson.M{"team_version": 1},
			},
		).Decode(&person)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return models.ErrPersonNotFound
			}
			return fmt.Errorf("failed to promote person: %w", err)
		}
		if person.CedulaLider != nil && *person.CedulaLider != cedula {
			previousLeaders = append(previousLeaders, *person.CedulaLider)
		}

		leaders, err := s.validateAssignment(sessCtx, coll, members)
		if err != nil {
			return err
		}
		previousLeaders = append(previousLeaders, leaders...)

		now := s.now()
		if len(members) > 0 {
			if _, err := coll.UpdateMany(sessCtx,
				bson.M{"cedula": bson.M{"$in": members}},
				bson.M{"$set": bson.M{"cedula_lider": cedula, "updated_at": now}},
			); err != nil {
				return fmt.Errorf("failed to assign team: %w", err)
			}
		}

		keep := append([]string{cedula}, members...)
		if _, err := coll.UpdateMany(sessCtx,
			bson.M{"cedula_lider": cedula, "cedula": bson.M{"$nin": keep}},
			bson.M{"$set": bson.M{"cedula_lider": nil, "updated_at": now}},
		); err != nil {
			return fmt.Errorf("failed to release former members: %w", err)
		}
		return nil
	})
	if err != nil {
		observability.DatabaseOperations.WithLabelValues("promote_leader", "error").Inc()
		utils.RecordErrorInSpan(span, err, nil)
		return nil, err
	}
	observability.DatabaseOperations.WithLabelValues("promote_leader", "success").Inc()

	s.cache.InvalidateDashboards(ctx, append(previousLeaders, cedula)...)
	s.logger.Info("person promoted to leader",
		zap.String("cedula", observability.MaskCedula(cedula)),
		zap.Int("team_size", len(members)))

	return s.team(ctx, coll, cedula)
}

// validateAssignment checks that every member exists, none is a leader and
// no role exceeds the team size. It returns the members' current leaders.
func (s *PromotionService) validateAssignment(sessCtx mongo.SessionContext, coll *mongo.Collection, members []string) ([]string, error) {
	if len(members) == 0 {
		return nil, nil
	}

	cursor, err := coll.Find(sessCtx, bson.M{"cedula": bson.M{"$in": members}},
		options.Find().SetProjection(bson.M{"cedula": 1, "rol": 1, "cedula_lider": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to load assigned members: %w", err)
	}
	var found []models.Person
	if err := cursor.All(sessCtx, &found); err != nil {
		return nil, fmt.Errorf("failed to decode assigned members: %w", err)
	}

	byCedula := make(map[string]models.Person, len(found))
	for _, p := range found {
		byCedula[p.Cedula] = p
	}

	var missing, leaders []string
	perRol := map[models.Rol]int{}
	var previous []string
	for _, c := range members {
		p, ok := byCedula[c]
		if !ok {
			missing = append(missing, c)
			continue
		}
		if p.IsLeader() {
			leaders = append(leaders, c)
			continue
		}
		perRol[p.Rol]++
		if p.CedulaLider != nil {
			previous = append(previous, *p.CedulaLider)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: cédulas inexistentes %s", models.ErrInvalidAssignment, strings.Join(missing, ", "))
	}
	if len(leaders) > 0 {
		return nil, fmt.Errorf("%w: las cédulas %s ya son líderes", models.ErrInvalidAssignment, strings.Join(leaders, ", "))
	}
	for _, n := range perRol {
		if n > rules.MaxTeamSize {
			return nil, models.ErrCapacityExceeded
		}
	}
	return previous, nil
}

func (s *PromotionService) team(ctx context.Context, coll *mongo.Collection, cedula string) (*models.TeamResponse, error) {
	var leader models.Person
	if err := coll.FindOne(ctx, bson.M{"cedula": cedula}).Decode(&leader); err != nil {
		return nil, fmt.Errorf("failed to reload leader: %w", err)
	}

	cursor, err := coll.Find(ctx, bson.M{"cedula_lider": cedula, "cedula": bson.M{"$ne": cedula}},
		options.Find().SetSort(bson.D{{Key: "nombre_completo", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to reload team: %w", err)
	}
	var members []models.Person
	if err := cursor.All(ctx, &members); err != nil {
		return nil, fmt.Errorf("failed to decode team: %w", err)
	}

	team := &models.TeamResponse{
		Lider:      leader,
		Asociados:  []models.Person{},
		Impulsores: []models.Person{},
		Capacidad:  rules.MaxTeamSize,
	}
	for _, m := range members {
		if m.Rol == models.RolImpulsor {
			team.Impulsores = append(team.Impulsores, m)
		} else {
			team.Asociados = append(team.Asociados, m)
		}
	}
	return fillCupos(team), nil
}

func fillCupos(team *models.TeamResponse) *models.TeamResponse {
	team.CuposAsociados = rules.RemainingCapacity(len(team.Asociados))
	team.CuposImpulsores = rules.RemainingCapacity(len(team.Impulsores))
	return team
}

// dedupeCedulas normalizes, drops blanks and self, and sorts the list
func dedupeCedulas(cedulas []string, self string) []string {
	seen := map[string]bool{self: true}
	out := make([]string, 0, len(cedulas))
	for _, c := range cedulas {
		n := utils.NormalizeCedula(c)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
