package services

import (
	"context"
	"fmt"
	"time"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/rules"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const migrationBatchSize = 500

// Migration names
const (
	MigrationEstados = "estados"
	MigrationLideres = "lideres"
)

// MigrationService runs the maintenance passes over existing rows
type MigrationService struct {
	database *mongo.Database
	cache    *CacheService
	logger   *logging.SafeLogger
	now      func() time.Time
}

// NewMigrationService creates a new migration service
func NewMigrationService(database *mongo.Database, cache *CacheService, logger *logging.SafeLogger) *MigrationService {
	return &MigrationService{
		database: database,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes a migration by name
func (s *MigrationService) Run(ctx context.Context, name string) (*models.MigrationResult, error) {
	switch name {
	case MigrationEstados:
		return s.RecomputeEstados(ctx)
	case MigrationLideres:
		return s.NormalizeLeaderReferences(ctx)
	default:
		return nil, fmt.Errorf("%w: migración desconocida %q", models.ErrValidation, name)
	}
}

// RecomputeEstados re-derives estado and vota_en_bello on every row. Only
// rows whose values change are written.
func (s *MigrationService) RecomputeEstados(ctx context.Context) (*models.MigrationResult, error) {
	coll := s.database.Collection(config.AppConfig.PersonCollection)
	result := &models.MigrationResult{Name: MigrationEstados}

	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{
		"cedula": 1, "municipio_votacion": 1, "municipio_puesto": 1, "estado": 1, "vota_en_bello": 1,
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to scan persons: %w", err)
	}
	defer cursor.Close(ctx)

	batch := make([]mongo.WriteModel, 0, migrationBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		res, err := coll.BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false))
		if err != nil {
			return fmt.Errorf("failed to write estados: %w", err)
		}
		result.Modified += res.ModifiedCount
		batch = batch[:0]
		return nil
	}

	now := s.now()
	for cursor.Next(ctx) {
		var p models.Person
		if err := cursor.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode person: %w", err)
		}
		result.Scanned++

		estado := rules.DeriveEstado(p.MunicipioVotacion, p.MunicipioPuesto)
		votaEn := rules.VotaEn(p.MunicipioPuesto, config.AppConfig.DistinguishedMunicipality)
		if estado == p.Estado && votaEn == p.VotaEnBello {
			continue
		}
		batch = append(batch, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"cedula": p.Cedula}).
			SetUpdate(bson.M{"$set": bson.M{"estado": estado, "vota_en_bello": votaEn, "updated_at": now}}))
		if len(batch) == migrationBatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan persons: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	s.finish(ctx, result)
	return result, nil
}

// NormalizeLeaderReferences makes every leader point at itself and clears
// member references to "admin", to missing persons or to non-leaders.
func (s *MigrationService) NormalizeLeaderReferences(ctx context.Context) (*models.MigrationResult, error) {
	coll := s.database.Collection(config.AppConfig.PersonCollection)
	result := &models.MigrationResult{Name: MigrationLideres}
	now := s.now()

	total, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to count persons: %w", err)
	}
	result.Scanned = total

	res, err := coll.UpdateMany(ctx,
		bson.M{"rol": models.RolLider, "$expr": bson.M{"$ne": bson.A{"$cedula_lider", "$cedula"}}},
		mongo.Pipeline{{{Key: "$set", Value: bson.M{"cedula_lider": "$cedula", "updated_at": now}}}})
	if err != nil {
		return nil, fmt.Errorf("failed to self-reference leaders: %w", err)
	}
	result.Modified += res.ModifiedCount

	values, err := coll.Distinct(ctx, "cedula", bson.M{"rol": models.RolLider})
	if err != nil {
		return nil, fmt.Errorf("failed to list leaders: %w", err)
	}
	leaders := bson.A{}
	for _, v := range values {
		leaders = append(leaders, v)
	}

	res, err = coll.UpdateMany(ctx,
		bson.M{
			"rol": bson.M{"$ne": models.RolLider},
			"$and": bson.A{
				bson.M{"cedula_lider": bson.M{"$ne": nil}},
				bson.M{"cedula_lider": bson.M{"$nin": leaders}},
			},
		},
		bson.M{"$set": bson.M{"cedula_lider": nil, "updated_at": now}})
	if err != nil {
		return nil, fmt.Errorf("failed to clear orphan leader references: %w", err)
	}
	result.Modified += res.ModifiedCount

	s.finish(ctx, result)
	return result, nil
}

func (s *MigrationService) finish(ctx context.Context, result *models.MigrationResult) {
	if result.Modified > 0 {
		s.cache.InvalidateDashboards(ctx)
	}
	s.logger.Info("migration finished",
		zap.String("migration", result.Name),
		zap.Int64("scanned", result.Scanned),
		zap.Int64("modified", result.Modified))
}
