// Command crmctl runs CRM maintenance tasks against the configured MongoDB
// and Redis: spreadsheet imports, data migrations, admin access codes and the
// voting place catalog.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	timeout time.Duration

	connected bool
)

// cliIdentity is the session imports run under
var cliIdentity = models.SessionIdentity{
	SessionID: "crmctl",
	Nombre:    "crmctl",
	Role:      models.SessionAdmin,
}

var rootCmd = &cobra.Command{
	Use:   "crmctl",
	Short: "Herramientas de mantenimiento del CRM Electoral",
	Long: `crmctl ejecuta tareas de mantenimiento sobre la base de datos configurada
por las variables de entorno de la API (MONGODB_URI, REDIS_URI, ...).

Importa planillas de personas y de puestos de votación, ejecuta migraciones
de datos y crea códigos de acceso de administrador.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return connect()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		disconnect()
	},
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Tiempo máximo de la operación")

	rootCmd.AddCommand(importCmd, migrateCmd, adminCodeCmd, puestosCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connect initializes logging, configuration and the datastores
func connect() error {
	if connected {
		return nil
	}
	if err := logging.InitLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := config.LoadConfig(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.InitMongoDB(); err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	config.InitRedis()
	connected = true
	return nil
}

func disconnect() {
	if !connected {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if config.Redis != nil {
		_ = config.Redis.Close()
	}
	config.CloseMongoDB(ctx)
	_ = logging.Logger.Sync()
	connected = false
}

// operationContext bounds a command by the --timeout flag
func operationContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, timeout)
}

func newCache() *services.CacheService {
	return services.NewCacheService(config.Redis, logging.Logger.Named("cache"))
}

// writeJSON prints v indented on the command output
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func logDone(operation string, started time.Time, fields ...zap.Field) {
	fields = append(fields, zap.Duration("duration", time.Since(started)))
	logging.Logger.Info(operation+" completed", fields...)
}
