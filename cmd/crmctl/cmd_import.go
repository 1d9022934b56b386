package main

import (
	"fmt"
	"os"
	"time"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/services"
	"github.com/crm-electoral/app-crm/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var aliasesPath string

var importCmd = &cobra.Command{
	Use:   "import <planilla.csv>",
	Short: "Importa una planilla de personas",
	Long: `Importa una planilla CSV (separada por ";" o ",") de líderes, asociados e
impulsores. Los encabezados se reconocen con la tabla de alias; las filas
inválidas se informan sin detener la importación.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&aliasesPath, "aliases", "", "Tabla YAML de alias de encabezados (por defecto IMPORT_ALIASES_PATH o la tabla integrada)")
}

func runImport(cmd *cobra.Command, args []string) error {
	path := aliasesPath
	if path == "" {
		path = config.AppConfig.ImportAliasesPath
	}
	aliases, err := services.LoadColumnAliases(path)
	if err != nil {
		return err
	}

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer file.Close()

	ctx, cancel := operationContext(cmd)
	defer cancel()

	started := time.Now()
	importer := services.NewImportService(config.MongoDB, newCache(), aliases, logging.Logger.Named("import"))
	result, err := importer.Import(ctx, cliIdentity, file)
	if err != nil {
		return err
	}
	logDone("import", started,
		zap.String("file", args[0]),
		zap.Int("rows", result.Rows),
		zap.Int("failed", result.Failed))
	if err := utils.LogAuditEvent(ctx, utils.AuditContextFromIdentity(cliIdentity), utils.AuditActionImport, utils.AuditResourceImport, args[0], nil, result, map[string]string{"source": "crmctl"}); err != nil {
		logging.Logger.Warn("failed to record audit event", zap.Error(err))
	}
	return writeJSON(cmd.OutOrStdout(), result)
}
