package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/handlers"
	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/middleware"
	"github.com/crm-electoral/app-crm/internal/observability"
	"github.com/crm-electoral/app-crm/internal/services"
	"github.com/crm-electoral/app-crm/internal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/crm-electoral/app-crm/docs"
)

// @title           CRM Electoral API
// @version         1.0
// @description     API del CRM de campaña: registro de líderes, asociados e impulsores, control de capacidad de equipos, estados derivados del puesto de votación, tablero por municipio, importación de planillas y chat con la coordinación.

// @contact.name   Equipo CRM Electoral

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /v1

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

// @tag.name auth
// @tag.description Sesiones de administrador y de líder

// @tag.name personas
// @tag.description Registro, edición y equipos

// @tag.name dashboard
// @tag.description Agregados por estado, rol y municipio

// @tag.name health
// @tag.description Health check operations

func main() {
	if err := logging.InitLogger(); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	if err := config.LoadConfig(); err != nil {
		logging.Logger.Fatal("failed to load config", zap.Error(err))
	}

	observability.InitTracer()
	defer observability.ShutdownTracer()

	if err := config.InitMongoDB(); err != nil {
		logging.Logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	config.InitRedis()

	utils.InitAuditWorker(2, 1000)

	api, auth, err := buildHandlers(logging.Logger)
	if err != nil {
		logging.Logger.Fatal("failed to build services", zap.Error(err))
	}

	if config.AppConfig.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestTiming(),
		middleware.RequestLogger(),
		middleware.RequestTracker(),
		corsMiddleware(),
		middleware.AuditMiddleware(),
	)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	handlers.RegisterRoutes(router.Group("/v1"), api, auth)

	// WriteTimeout stays zero so the chat stream can stay open
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.AppConfig.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logging.Logger.Info("starting server",
			zap.Int("port", config.AppConfig.Port),
			zap.String("environment", config.AppConfig.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Logger.Error("server forced to shutdown", zap.Error(err))
	}

	utils.GetAuditWorker().Stop()
	if config.Redis != nil {
		_ = config.Redis.Close()
	}
	config.CloseMongoDB(ctx)
	_ = logging.Logger.Sync()

	logging.Logger.Info("server exited gracefully")
}

func buildHandlers(logger *logging.SafeLogger) (*handlers.Handlers, *services.AuthService, error) {
	aliases, err := services.LoadColumnAliases(config.AppConfig.ImportAliasesPath)
	if err != nil {
		return nil, nil, err
	}

	db := config.MongoDB
	cache := services.NewCacheService(config.Redis, logger.Named("cache"))
	promotion := services.NewPromotionService(db, cache, logger.Named("promotion"))
	persons := services.NewPersonService(db, cache, promotion, logger.Named("persons"))
	auth := services.NewAuthService(db, cache, logger.Named("auth"))
	geo := services.NewGeoService(config.AppConfig.GeoJSONPath, logger.Named("geo"))
	if err := geo.Load(); err != nil {
		// The map endpoint retries the load on demand
		logger.Warn("geojson not loaded", zap.Error(err))
	}

	var limiter middleware.Limiter
	if perMinute := config.AppConfig.LoginRateLimit; perMinute > 0 {
		rl := services.NewRateLimiter(perMinute, logger.Named("ratelimit"))
		rl.StartCleanup(time.Hour, make(chan struct{}))
		limiter = rl
	}

	return &handlers.Handlers{
		Auth:      handlers.NewAuthHandlers(logger, auth),
		Persons:   handlers.NewPersonHandlers(logger, persons, promotion),
		Dashboard: handlers.NewDashboardHandlers(logger, services.NewDashboardService(db, cache, geo, logger.Named("dashboard"))),
		Puestos:   handlers.NewPuestoHandlers(logger, services.NewPuestoService(db, logger.Named("puestos"))),
		Chat:      handlers.NewChatHandlers(logger, services.NewChatService(db, config.Redis, config.AppConfig.ChatChannel, logger.Named("chat"))),
		Links:     handlers.NewLinkHandlers(logger, services.NewLinkService(persons, logger.Named("links"))),
		Admin: handlers.NewAdminHandlers(logger,
			services.NewImportService(db, cache, aliases, logger.Named("import")),
			services.NewMigrationService(db, cache, logger.Named("migration")),
			auth),
		Limiter: limiter,
	}, auth, nil
}

func corsMiddleware() gin.HandlerFunc {
	if len(config.AppConfig.AllowedOrigins) == 0 {
		return cors.Default()
	}
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = config.AppConfig.AllowedOrigins
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", middleware.RequestIDHeader)
	cfg.ExposeHeaders = []string{middleware.RequestIDHeader}
	return cors.New(cfg)
}
