package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/redisclient"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.uber.org/zap"
)

var (
	// MongoDB database handle
	MongoDB *mongo.Database
	// Redis client
	Redis *redisclient.Client
)

// IndexSpec describes one index the application relies on.
type IndexSpec struct {
	Collection string
	Model      mongo.IndexModel
}

// InitMongoDB connects to MongoDB and ensures the required indexes exist.
func InitMongoDB() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(AppConfig.MongoURI).
		SetMonitor(otelmongo.NewMonitor()).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongodb: %w", err)
	}

	MongoDB = client.Database(AppConfig.MongoDatabase)

	if err := EnsureIndexes(context.Background(), MongoDB); err != nil {
		logging.Logger.Error("failed to ensure indexes on startup", zap.Error(err))
	}

	logging.Logger.Info("connected to MongoDB",
		zap.String("uri", maskMongoURI(AppConfig.MongoURI)),
		zap.String("database", AppConfig.MongoDatabase),
	)
	return nil
}

// InitRedis connects to Redis. A failed ping is logged, not fatal: Redis only
// backs caches and chat fan-out.
func InitRedis() {
	redisClient := redis.NewClient(&redis.Options{
		Addr:         AppConfig.RedisURI,
		Password:     AppConfig.RedisPassword,
		DB:           AppConfig.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	Redis = redisclient.NewClient(redisClient)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Redis.Ping(ctx).Err(); err != nil {
		logging.Logger.Error("failed to connect to Redis",
			zap.String("uri", AppConfig.RedisURI),
			zap.Error(err))
		return
	}

	logging.Logger.Info("connected to Redis", zap.String("uri", AppConfig.RedisURI))
}

// CloseMongoDB disconnects the client behind MongoDB.
func CloseMongoDB(ctx context.Context) {
	if MongoDB == nil {
		return
	}
	if err := MongoDB.Client().Disconnect(ctx); err != nil {
		logging.Logger.Error("failed to disconnect MongoDB", zap.Error(err))
	}
}

// maskMongoURI hides the credentials part of a MongoDB URI.
func maskMongoURI(uri string) string {
	at := strings.LastIndex(uri, "@")
	if at < 0 {
		return uri
	}
	scheme := "mongodb://"
	if strings.HasPrefix(uri, "mongodb+srv://") {
		scheme = "mongodb+srv://"
	}
	return scheme + "****:****@" + uri[at+1:]
}

// RequiredIndexes lists the indexes for the configured collections.
func RequiredIndexes(cfg *Config) []IndexSpec {
	return []IndexSpec{
		{
			Collection: cfg.PersonCollection,
			Model: mongo.IndexModel{
				Keys:    bson.D{{Key: "cedula", Value: 1}},
				Options: options.Index().SetName("cedula_1").SetUnique(true),
			},
		},
		{
			Collection: cfg.PersonCollection,
			Model: mongo.IndexModel{
				Keys:    bson.D{{Key: "cedula_lider", Value: 1}, {Key: "rol", Value: 1}},
				Options: options.Index().SetName("cedula_lider_1_rol_1"),
			},
		},
		{
			Collection: cfg.PersonCollection,
			Model: mongo.IndexModel{
				Keys:    bson.D{{Key: "municipio_puesto", Value: 1}},
				Options: options.Index().SetName("municipio_puesto_1"),
			},
		},
		{
			Collection: cfg.SessionCollection,
			Model: mongo.IndexModel{
				Keys:    bson.D{{Key: "expires_at", Value: 1}},
				Options: options.Index().SetName("expires_at_ttl").SetExpireAfterSeconds(0),
			},
		},
		{
			Collection: cfg.AdminCodeCollection,
			Model: mongo.IndexModel{
				Keys:    bson.D{{Key: "active", Value: 1}},
				Options: options.Index().SetName("active_1"),
			},
		},
		{
			Collection: cfg.PuestoCollection,
			Model: mongo.IndexModel{
				Keys:    bson.D{{Key: "municipio", Value: 1}, {Key: "puesto", Value: 1}},
				Options: options.Index().SetName("municipio_1_puesto_1").SetUnique(true),
			},
		},
		{
			Collection: cfg.ChatCollection,
			Model: mongo.IndexModel{
				Keys:    bson.D{{Key: "cedula_lider", Value: 1}, {Key: "created_at", Value: 1}},
				Options: options.Index().SetName("cedula_lider_1_created_at_1"),
			},
		},
		{
			Collection: cfg.AuditLogsCollection,
			Model: mongo.IndexModel{
				Keys:    bson.D{{Key: "cedula", Value: 1}, {Key: "timestamp", Value: -1}},
				Options: options.Index().SetName("cedula_1_timestamp_-1"),
			},
		},
	}
}

// EnsureIndexes creates every required index that does not exist yet.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	logger := logging.Logger.Named("database")
	logger.Info("ensuring required indexes exist")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, spec := range RequiredIndexes(AppConfig) {
		if err := ensureIndex(ctx, db.Collection(spec.Collection), spec.Model); err != nil {
			logger.Error("failed to ensure index",
				zap.String("collection", spec.Collection),
				zap.Error(err))
			return err
		}
	}

	logger.Info("all required indexes verified")
	return nil
}

func ensureIndex(ctx context.Context, collection *mongo.Collection, model mongo.IndexModel) error {
	name := ""
	if model.Options != nil && model.Options.Name != nil {
		name = *model.Options.Name
	}

	existing, err := indexNames(ctx, collection)
	if err != nil {
		return err
	}
	if existing[name] {
		return nil
	}

	if _, err := collection.Indexes().CreateOne(ctx, model); err != nil {
		// Another instance may have created it concurrently.
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("create index %s on %s: %w", name, collection.Name(), err)
	}

	logging.Logger.Info("created index",
		zap.String("collection", collection.Name()),
		zap.String("index", name))
	return nil
}

func indexNames(ctx context.Context, collection *mongo.Collection) (map[string]bool, error) {
	cursor, err := collection.Indexes().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexes on %s: %w", collection.Name(), err)
	}
	defer cursor.Close(ctx)

	names := map[string]bool{}
	for cursor.Next(ctx) {
		var index bson.M
		if err := cursor.Decode(&index); err != nil {
			continue
		}
		if name, ok := index["name"].(string); ok {
			names[name] = true
		}
	}
	return names, cursor.Err()
}
