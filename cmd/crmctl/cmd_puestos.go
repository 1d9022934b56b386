package main

import (
	"fmt"
	"os"
	"time"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var puestosCmd = &cobra.Command{
	Use:   "puestos",
	Short: "Gestiona el catálogo de puestos de votación",
}

var puestosImportCmd = &cobra.Command{
	Use:   "import <puestos.csv>",
	Short: "Carga o actualiza los puestos de votación",
	Long: `Carga la divulgación de puestos de la Registraduría. Se requieren las
columnas municipio y puesto; departamento, dirección y mesas son opcionales.
Los puestos de municipios fuera de Antioquia se omiten.`,
	Args: cobra.ExactArgs(1),
	RunE: runPuestosImport,
}

// puestosImportResult is what the command prints
type puestosImportResult struct {
	Rows    int   `json:"rows"`
	Written int64 `json:"written"`
	Skipped int   `json:"skipped"`
}

func init() {
	puestosCmd.AddCommand(puestosImportCmd)
}

func runPuestosImport(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open puestos file: %w", err)
	}
	defer file.Close()

	puestos, err := services.ParsePuestosCSV(file)
	if err != nil {
		return err
	}

	ctx, cancel := operationContext(cmd)
	defer cancel()

	started := time.Now()
	catalog := services.NewPuestoService(config.MongoDB, logging.Logger.Named("puestos"))
	written, skipped, err := catalog.UpsertPuestos(ctx, puestos)
	if err != nil {
		return err
	}
	logDone("puestos import", started, zap.Int64("written", written), zap.Int("skipped", skipped))
	return writeJSON(cmd.OutOrStdout(), puestosImportResult{Rows: len(puestos), Written: written, Skipped: skipped})
}
