package rules

import (
	"strings"

	"github.com/crm-electoral/app-crm/internal/models"
)

func unknownMunicipio(v *string) bool {
	return v == nil || strings.TrimSpace(*v) == "" || *v == models.MunicipioDesconocido
}

// DeriveEstado computes the registration status from the municipality the
// person lives in and the municipality of the assigned voting place.
//
// Either side unknown gives PENDIENTE, equal values APROBADO, anything else
// RECHAZADO. The comparison is literal: callers pass canonical dropdown
// values, and import canonicalizes before calling.
func DeriveEstado(residencia, puesto *string) models.Estado {
	if unknownMunicipio(residencia) || unknownMunicipio(puesto) {
		return models.EstadoPendiente
	}
	if *residencia == *puesto {
		return models.EstadoAprobado
	}
	return models.EstadoRechazado
}

// VotaEn reports whether the voting place lies in the distinguished municipality
func VotaEn(puesto *string, distinguished string) bool {
	if unknownMunicipio(puesto) {
		return false
	}
	return SameLocation(*puesto, distinguished)
}
