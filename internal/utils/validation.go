package utils

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/crm-electoral/app-crm/internal/models"
)

const (
	maxNameLength  = 150
	maxNotesLength = 1000
	maxFieldLength = 120
)

// ValidationError represents a validation error with field and message
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid bool              `json:"is_valid"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// NewValidationResult creates a new validation result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		IsValid: true,
		Errors:  []ValidationError{},
	}
}

// AddError adds a validation error to the result
func (vr *ValidationResult) AddError(field, message string) {
	vr.IsValid = false
	vr.Errors = append(vr.Errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// Error joins the messages so a result can travel as an error value.
func (vr *ValidationResult) Error() string {
	parts := make([]string, 0, len(vr.Errors))
	for _, e := range vr.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match models.ErrValidation.
func (vr *ValidationResult) Unwrap() error {
	return models.ErrValidation
}

// Err returns nil when the result is valid and the result itself otherwise.
func (vr *ValidationResult) Err() error {
	if vr.IsValid {
		return nil
	}
	return vr
}

// ValidateEmail validates an email address
func ValidateEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// ValidatePersonInput validates a registration payload
func ValidatePersonInput(input models.PersonInput) *ValidationResult {
	result := NewValidationResult()

	if strings.TrimSpace(input.Cedula) == "" {
		result.AddError("cedula", "La cédula es obligatoria")
	} else if !ValidateCedula(input.Cedula) {
		result.AddError("cedula", "La cédula debe tener entre 5 y 10 dígitos")
	}

	validateName(result, input.NombreCompleto)

	if input.Rol == "" {
		result.AddError("rol", "El rol es obligatorio")
	} else if !input.Rol.Valid() {
		result.AddError("rol", "Rol inválido")
	}

	validateOptionalContact(result, input.Telefono, input.Email)
	validateOptionalText(result, "municipio_votacion", input.MunicipioVotacion, maxFieldLength)
	validateOptionalText(result, "municipio_puesto", input.MunicipioPuesto, maxFieldLength)
	validateOptionalText(result, "puesto_votacion", input.PuestoVotacion, maxFieldLength)
	validateOptionalText(result, "mesa_votacion", input.MesaVotacion, maxFieldLength)
	validateOptionalText(result, "notas", input.Notas, maxNotesLength)

	if !validLeaderReference(input.CedulaLider) {
		result.AddError("cedula_lider", "Cédula de líder inválida")
	}

	validateVotos(result, input.Rol, input.VotosPrometidos)

	return result
}

// ValidatePersonPatch validates an edit payload. rol is the role the person
// will have once the patch applies.
func ValidatePersonPatch(patch models.PersonPatch, rol models.Rol) *ValidationResult {
	result := NewValidationResult()

	if patch.NombreCompleto != nil {
		validateName(result, *patch.NombreCompleto)
	}
	if patch.Rol != nil && !patch.Rol.Valid() {
		result.AddError("rol", "Rol inválido")
	}
	if patch.Estado != nil && !patch.Estado.Valid() {
		result.AddError("estado", "Estado inválido")
	}

	validateOptionalContact(result, patch.Telefono, patch.Email)
	validateOptionalText(result, "municipio_votacion", patch.MunicipioVotacion, maxFieldLength)
	validateOptionalText(result, "municipio_puesto", patch.MunicipioPuesto, maxFieldLength)
	validateOptionalText(result, "puesto_votacion", patch.PuestoVotacion, maxFieldLength)
	validateOptionalText(result, "mesa_votacion", patch.MesaVotacion, maxFieldLength)
	validateOptionalText(result, "notas", patch.Notas, maxNotesLength)

	if !validLeaderReference(patch.CedulaLider) {
		result.AddError("cedula_lider", "Cédula de líder inválida")
	}
	if patch.ClearLider && patch.CedulaLider != nil {
		result.AddError("cedula_lider", "No se puede asignar y quitar el líder a la vez")
	}
	if patch.VotosPrometidos != nil {
		validateVotos(result, rol, *patch.VotosPrometidos)
	}
	for _, cedula := range patch.AssignedCedulas {
		if !ValidateCedula(cedula) {
			result.AddError("assigned_cedulas", fmt.Sprintf("Cédula inválida: %s", cedula))
		}
	}

	return result
}

// validLeaderReference accepts a blank value, the legacy "admin" marker
// (meaning unassigned) or a cedula.
func validLeaderReference(v *string) bool {
	if v == nil {
		return true
	}
	trimmed := strings.TrimSpace(*v)
	return trimmed == "" || strings.EqualFold(trimmed, "admin") || ValidateCedula(trimmed)
}

func validateName(result *ValidationResult, name string) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		result.AddError("nombre_completo", "El nombre completo es obligatorio")
		return
	}
	if utf8.RuneCountInString(trimmed) > maxNameLength {
		result.AddError("nombre_completo", fmt.Sprintf("El nombre no puede superar %d caracteres", maxNameLength))
	}
}

func validateOptionalContact(result *ValidationResult, telefono, email *string) {
	if telefono != nil && strings.TrimSpace(*telefono) != "" && !ValidatePhone(*telefono) {
		result.AddError("telefono", "El teléfono debe tener exactamente 10 dígitos")
	}
	if email != nil && strings.TrimSpace(*email) != "" && !ValidateEmail(strings.TrimSpace(*email)) {
		result.AddError("email", "Correo electrónico inválido")
	}
}

func validateOptionalText(result *ValidationResult, field string, value *string, max int) {
	if value != nil && utf8.RuneCountInString(*value) > max {
		result.AddError(field, fmt.Sprintf("No puede superar %d caracteres", max))
	}
}

func validateVotos(result *ValidationResult, rol models.Rol, votos int) {
	if votos < 0 {
		result.AddError("votos_prometidos", "Los votos prometidos no pueden ser negativos")
		return
	}
	if votos > 0 && rol != models.RolImpulsor {
		result.AddError("votos_prometidos", "Solo los impulsores registran votos prometidos")
	}
}
