package observability

import (
	"github.com/crm-electoral/app-crm/internal/logging"
)

// Logger returns the global safe logger instance
func Logger() *logging.SafeLogger {
	return logging.Logger
}

// MaskCedula masks a cédula for logging, keeping the first three and last
// two digits.
func MaskCedula(cedula string) string {
	if len(cedula) < 6 {
		return "******"
	}
	masked := make([]byte, len(cedula))
	for i := range cedula {
		if i < 3 || i >= len(cedula)-2 {
			masked[i] = cedula[i]
		} else {
			masked[i] = '*'
		}
	}
	return string(masked)
}

// MaskSensitiveData masks sensitive data in a map
func MaskSensitiveData(data map[string]interface{}) map[string]interface{} {
	sensitiveFields := []string{"cedula", "telefono", "email", "code", "face_descriptor"}

	masked := make(map[string]interface{})
	for k, v := range data {
		if contains(sensitiveFields, k) {
			masked[k] = "********"
		} else {
			masked[k] = v
		}
	}
	return masked
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
