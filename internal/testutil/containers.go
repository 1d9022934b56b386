// Package testutil starts throwaway MongoDB and Redis containers for
// integration tests and points the global configuration at them.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/redisclient"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const testDatabase = "crm_electoral_test"

// Environment holds the connections of a running test environment
type Environment struct {
	MongoClient *mongo.Client
	MongoDB     *mongo.Database
	Redis       *redisclient.Client

	mongoContainer *mongodb.MongoDBContainer
	redisContainer *redis.RedisContainer
}

var (
	envOnce sync.Once
	env     *Environment
	envErr  error
)

// TestConfig returns a configuration suitable for tests
func TestConfig() *config.Config {
	return &config.Config{
		Environment:               "test",
		MongoDatabase:             testDatabase,
		PersonCollection:          "personas",
		AdminCodeCollection:       "admin_codes",
		SessionCollection:         "sesiones",
		PuestoCollection:          "puestos_votacion",
		ChatCollection:            "chat_messages",
		AuditLogsCollection:       "audit_logs",
		RedisTTL:                  time.Minute,
		SessionSecret:             "test-secret-with-enough-entropy",
		SessionTTL:                time.Hour,
		FaceMatchThreshold:        0.6,
		DistinguishedMunicipality: "Bello",
		DashboardCacheTTL:         time.Minute,
		ChatChannel:               "crm:chat:test",
		PublicBaseURL:             "https://crm.example.com",
	}
}

// Setup starts the shared containers on first use and resets the database.
// It skips the test when Docker is not available or -short is set.
func Setup(t *testing.T) *Environment {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	envOnce.Do(func() {
		env, envErr = start(context.Background())
	})
	if envErr != nil {
		t.Skipf("test containers unavailable: %v", envErr)
	}

	config.AppConfig = TestConfig()
	config.MongoDB = env.MongoDB
	config.Redis = env.Redis

	Reset(t)
	return env
}

func start(ctx context.Context) (*Environment, error) {
	mongoContainer, err := mongodb.Run(ctx, "mongo:7.0", mongodb.WithReplicaSet("rs0"))
	if err != nil {
		return nil, fmt.Errorf("start mongodb: %w", err)
	}

	redisContainer, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		_ = mongoContainer.Terminate(ctx)
		return nil, fmt.Errorf("start redis: %w", err)
	}

	mongoURI, err := mongoContainer.ConnectionString(ctx)
	if err != nil {
		return nil, fmt.Errorf("mongodb connection string: %w", err)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	redisURI, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis connection string: %w", err)
	}
	redisOpts, err := goredis.ParseURL(redisURI)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	return &Environment{
		MongoClient:    client,
		MongoDB:        client.Database(testDatabase),
		Redis:          redisclient.NewClient(goredis.NewClient(redisOpts)),
		mongoContainer: mongoContainer,
		redisContainer: redisContainer,
	}, nil
}

// Reset drops every collection, recreates the indexes and flushes Redis
func Reset(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	names, err := env.MongoDB.ListCollectionNames(ctx, bson.D{})
	require.NoError(t, err)
	for _, name := range names {
		require.NoError(t, env.MongoDB.Collection(name).Drop(ctx))
	}
	require.NoError(t, config.EnsureIndexes(ctx, env.MongoDB))
	require.NoError(t, env.Redis.FlushDB(ctx).Err())
}

// Teardown stops the containers. Call it from TestMain after m.Run.
func Teardown() {
	if env == nil {
		return
	}
	ctx := context.Background()
	_ = env.Redis.Close()
	_ = env.MongoClient.Disconnect(ctx)
	_ = env.mongoContainer.Terminate(ctx)
	_ = env.redisContainer.Terminate(ctx)
}
