package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/crm-electoral/app-crm/internal/config"
	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/services"
	"github.com/spf13/cobra"
)

var (
	codeLabel string
	codeValue string
	facePath  string
)

var adminCodeCmd = &cobra.Command{
	Use:   "admin-code",
	Short: "Gestiona los códigos de acceso de administrador",
}

var adminCodeCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Crea un código de acceso de administrador",
	Long: `Crea un código de acceso. Con --face el código exige además el rostro
registrado: el archivo contiene el descriptor facial como arreglo JSON de
128 números.`,
	Args: cobra.NoArgs,
	RunE: runAdminCodeCreate,
}

func init() {
	adminCodeCreateCmd.Flags().StringVar(&codeLabel, "label", "", "Nombre del código (quién lo usa)")
	adminCodeCreateCmd.Flags().StringVar(&codeValue, "code", "", "Código secreto")
	adminCodeCreateCmd.Flags().StringVar(&facePath, "face", "", "Archivo JSON con el descriptor facial")
	_ = adminCodeCreateCmd.MarkFlagRequired("label")
	_ = adminCodeCreateCmd.MarkFlagRequired("code")

	adminCodeCmd.AddCommand(adminCodeCreateCmd)
}

func runAdminCodeCreate(cmd *cobra.Command, args []string) error {
	var face []float64
	if facePath != "" {
		var err error
		if face, err = readFaceDescriptor(facePath); err != nil {
			return err
		}
	}

	ctx, cancel := operationContext(cmd)
	defer cancel()

	auth := services.NewAuthService(config.MongoDB, newCache(), logging.Logger.Named("auth"))
	code, err := auth.CreateAdminCode(ctx, codeLabel, codeValue, face)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), code)
}

// readFaceDescriptor loads a face descriptor saved as a JSON array of numbers
func readFaceDescriptor(path string) ([]float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read face descriptor: %w", err)
	}
	var descriptor []float64
	if err := json.Unmarshal(raw, &descriptor); err != nil {
		return nil, fmt.Errorf("invalid face descriptor %s: %w", path, err)
	}
	if len(descriptor) == 0 {
		return nil, fmt.Errorf("face descriptor %s is empty", path)
	}
	return descriptor, nil
}
