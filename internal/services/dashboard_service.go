package services

import (
	"context"
	"fmt"
	"time"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/rules"
	"github.com/crm-electoral/app-crm/internal/utils"
	"github.com/paulmach/orb/geojson"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DashboardService builds the dashboard tallies. Admins see every registrant,
// leaders see their own team including themselves.
type DashboardService struct {
	database *mongo.Database
	cache    *CacheService
	geo      *GeoService
	logger   *logging.SafeLogger
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(database *mongo.Database, cache *CacheService, geo *GeoService, logger *logging.SafeLogger) *DashboardService {
	return &DashboardService{
		database: database,
		cache:    cache,
		geo:      geo,
		logger:   logger,
	}
}

type groupCount struct {
	ID    string `bson:"_id"`
	Count int    `bson:"count"`
}

func dashboardScope(identity models.SessionIdentity) (bson.M, string, error) {
	switch {
	case identity.IsAdmin():
		return bson.M{}, dashboardAdminKey, nil
	case identity.Role == models.SessionLider && identity.Cedula != "":
		return bson.M{"cedula_lider": identity.Cedula}, dashboardLeaderKey(identity.Cedula), nil
	default:
		return nil, "", models.ErrForbidden
	}
}

// Summary returns the totals per estado, per rol and per municipality
func (s *DashboardService) Summary(ctx context.Context, identity models.SessionIdentity) (*models.DashboardSummary, error) {
	scope, key, err := dashboardScope(identity)
	if err != nil {
		return nil, err
	}

	var cached models.DashboardSummary
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	ctx, span, done := utils.TraceBusinessLogic(ctx, "dashboard.summary")
	defer done()
	utils.AddSpanAttribute(span, "dashboard.scope", key)

	coll := s.database.Collection(config.AppConfig.PersonCollection)
	summary := &models.DashboardSummary{
		PorEstado: rules.CountByEstado(nil),
		PorRol:    rules.CountByRol(nil),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := groupBy(gctx, coll, scope, "$estado")
		if err != nil {
			return err
		}
		for _, c := range counts {
			summary.PorEstado[models.Estado(c.ID)] = c.Count
		}
		return nil
	})
	g.Go(func() error {
		counts, err := groupBy(gctx, coll, scope, "$rol")
		if err != nil {
			return err
		}
		for _, c := range counts {
			summary.PorRol[models.Rol(c.ID)] = c.Count
		}
		return nil
	})
	var people []models.Person
	g.Go(func() error {
		cursor, err := coll.Find(gctx, scope, options.Find().
			SetProjection(bson.M{"municipio_puesto": 1, "vota_en_bello": 1}).
			SetSort(bson.D{{Key: "fecha_registro", Value: 1}, {Key: "cedula", Value: 1}}))
		if err != nil {
			return fmt.Errorf("failed to load municipalities: %w", err)
		}
		return cursor.All(gctx, &people)
	})
	if err := g.Wait(); err != nil {
		utils.RecordErrorInSpan(span, err, nil)
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}

	summary.Total = len(people)
	summary.Municipios = rules.AggregateByMunicipality(people)
	for _, p := range people {
		if p.VotaEnBello {
			summary.VotanEnBello++
		}
	}

	s.cache.SetJSON(ctx, key, summary, config.AppConfig.DashboardCacheTTL)
	s.logger.Debug("dashboard computed", zap.String("scope", key), zap.Int("total", summary.Total))
	return summary, nil
}

func groupBy(ctx context.Context, coll *mongo.Collection, scope bson.M, field string) ([]groupCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: scope}},
		{{Key: "$group", Value: bson.M{"_id": field, "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to group by %s: %w", field, err)
	}
	var out []groupCount
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s groups: %w", field, err)
	}
	return out, nil
}

// Municipios returns only the municipality buckets of the summary
func (s *DashboardService) Municipios(ctx context.Context, identity models.SessionIdentity) ([]models.MunicipalityCount, error) {
	summary, err := s.Summary(ctx, identity)
	if err != nil {
		return nil, err
	}
	return summary.Municipios, nil
}

// Map returns the municipality polygons with the registrant count of each
func (s *DashboardService) Map(ctx context.Context, identity models.SessionIdentity) (*geojson.FeatureCollection, error) {
	start := time.Now()
	counts, err := s.Municipios(ctx, identity)
	if err != nil {
		return nil, err
	}
	fc, err := s.geo.Features()
	if err != nil {
		return nil, err
	}
	out := JoinCounts(fc, counts)
	s.logger.Debug("dashboard map built",
		zap.Int("features", len(out.Features)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}
