package main

import (
	"time"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/services"
	"github.com/crm-electoral/app-crm/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <estados|lideres>",
	Short: "Ejecuta una migración de datos",
	Long: `Migraciones disponibles:

  estados  recalcula el estado de cada persona a partir de sus municipios
  lideres  normaliza las cédulas de líder y la autorreferencia de los líderes`,
	ValidArgs: []string{services.MigrationEstados, services.MigrationLideres},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:      runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := operationContext(cmd)
	defer cancel()

	started := time.Now()
	migrations := services.NewMigrationService(config.MongoDB, newCache(), logging.Logger.Named("migration"))
	result, err := migrations.Run(ctx, args[0])
	if err != nil {
		return err
	}
	logDone("migration", started,
		zap.String("name", result.Name),
		zap.Int64("modified", result.Modified))
	if err := utils.LogAuditEvent(ctx, utils.AuditContextFromIdentity(cliIdentity), utils.AuditActionMigrate, utils.AuditResourceMigration, result.Name, nil, result, map[string]string{"source": "crmctl"}); err != nil {
		logging.Logger.Warn("failed to record audit event", zap.Error(err))
	}
	return writeJSON(cmd.OutOrStdout(), result)
}
