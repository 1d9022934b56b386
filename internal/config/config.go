package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values
type Config struct {
	// Server configuration
	Port           int      `json:"port"`
	Environment    string   `json:"environment"`
	AllowedOrigins []string `json:"allowed_origins"`
	PublicBaseURL  string   `json:"public_base_url"`

	// MongoDB configuration
	MongoURI      string `json:"mongo_uri"`
	MongoDatabase string `json:"mongo_database"`

	// Redis configuration
	RedisURI      string        `json:"redis_uri"`
	RedisPassword string        `json:"redis_password"`
	RedisDB       int           `json:"redis_db"`
	RedisTTL      time.Duration `json:"redis_ttl"`

	// Collection names
	PersonCollection    string `json:"mongo_person_collection"`
	AdminCodeCollection string `json:"mongo_admin_code_collection"`
	SessionCollection   string `json:"mongo_session_collection"`
	PuestoCollection    string `json:"mongo_puesto_collection"`
	ChatCollection      string `json:"mongo_chat_collection"`
	AuditLogsCollection string `json:"mongo_audit_logs_collection"`

	// Sessions
	SessionSecret      string        `json:"-"`
	SessionTTL         time.Duration `json:"session_ttl"`
	FaceMatchThreshold float64       `json:"face_match_threshold"`

	// Campaign rules
	DistinguishedMunicipality string `json:"distinguished_municipality"`

	// Reference data
	GeoJSONPath       string `json:"geojson_path"`
	ImportAliasesPath string `json:"import_aliases_path"`

	// Requests per minute per client on login and self registration, 0 disables
	LoginRateLimit int `json:"login_rate_limit"`

	// Dashboard cache
	DashboardCacheTTL time.Duration `json:"dashboard_cache_ttl"`

	// Chat realtime channel
	ChatChannel string `json:"chat_channel"`

	// Observability
	TracingEnabled   bool   `json:"tracing_enabled"`
	TracingEndpoint  string `json:"tracing_endpoint"`
	AuditLogsEnabled bool   `json:"audit_logs_enabled"`
}

var (
	AppConfig *Config
)

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is read first when present.
func LoadConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	port, err := strconv.Atoi(getEnvOrDefault("PORT", "8080"))
	if err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	if err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	redisTTL, err := time.ParseDuration(getEnvOrDefault("REDIS_TTL", "60m"))
	if err != nil {
		return fmt.Errorf("invalid REDIS_TTL: %w", err)
	}

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET environment variable is required")
	}

	sessionTTL, err := time.ParseDuration(getEnvOrDefault("SESSION_TTL", "12h"))
	if err != nil {
		return fmt.Errorf("invalid SESSION_TTL: %w", err)
	}

	faceThreshold, err := strconv.ParseFloat(getEnvOrDefault("FACE_MATCH_THRESHOLD", "0.6"), 64)
	if err != nil {
		return fmt.Errorf("invalid FACE_MATCH_THRESHOLD: %w", err)
	}

	dashboardTTL, err := time.ParseDuration(getEnvOrDefault("DASHBOARD_CACHE_TTL", "2m"))
	if err != nil {
		return fmt.Errorf("invalid DASHBOARD_CACHE_TTL: %w", err)
	}

	loginRateLimit, err := strconv.Atoi(getEnvOrDefault("LOGIN_RATE_LIMIT", "20"))
	if err != nil || loginRateLimit < 0 {
		return fmt.Errorf("invalid LOGIN_RATE_LIMIT: %q", getEnvOrDefault("LOGIN_RATE_LIMIT", "20"))
	}

	tracingEnabled, err := strconv.ParseBool(getEnvOrDefault("TRACING_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("invalid TRACING_ENABLED: %w", err)
	}

	auditEnabled, err := strconv.ParseBool(getEnvOrDefault("AUDIT_LOGS_ENABLED", "true"))
	if err != nil {
		return fmt.Errorf("invalid AUDIT_LOGS_ENABLED: %w", err)
	}

	AppConfig = &Config{
		// Server configuration
		Port:           port,
		Environment:    getEnvOrDefault("ENVIRONMENT", "development"),
		AllowedOrigins: splitList(getEnvOrDefault("ALLOWED_ORIGINS", "*")),
		PublicBaseURL:  strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:5173"), "/"),

		// MongoDB configuration
		MongoURI:      getEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDatabase: getEnvOrDefault("MONGODB_DATABASE", "crm_electoral"),

		// Redis configuration
		RedisURI:      getEnvOrDefault("REDIS_URI", "localhost:6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,
		RedisTTL:      redisTTL,

		// Collection names
		PersonCollection:    getEnvOrDefault("MONGODB_PERSON_COLLECTION", "personas"),
		AdminCodeCollection: getEnvOrDefault("MONGODB_ADMIN_CODE_COLLECTION", "admin_codes"),
		SessionCollection:   getEnvOrDefault("MONGODB_SESSION_COLLECTION", "sesiones"),
		PuestoCollection:    getEnvOrDefault("MONGODB_PUESTO_COLLECTION", "puestos_votacion"),
		ChatCollection:      getEnvOrDefault("MONGODB_CHAT_COLLECTION", "chat_messages"),
		AuditLogsCollection: getEnvOrDefault("MONGODB_AUDIT_LOGS_COLLECTION", "audit_logs"),

		SessionSecret:      sessionSecret,
		SessionTTL:         sessionTTL,
		FaceMatchThreshold: faceThreshold,

		DistinguishedMunicipality: getEnvOrDefault("DISTINGUISHED_MUNICIPALITY", "Bello"),

		GeoJSONPath:       getEnvOrDefault("GEOJSON_PATH", "data/antioquia.geojson"),
		ImportAliasesPath: getEnvOrDefault("IMPORT_ALIASES_PATH", ""),

		LoginRateLimit: loginRateLimit,

		DashboardCacheTTL: dashboardTTL,
		ChatChannel:       getEnvOrDefault("CHAT_CHANNEL", "crm:chat"),

		TracingEnabled:   tracingEnabled,
		TracingEndpoint:  getEnvOrDefault("TRACING_ENDPOINT", "localhost:4317"),
		AuditLogsEnabled: auditEnabled,
	}

	return nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
