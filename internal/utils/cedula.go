package utils

import (
	"strings"
	"unicode"
)

const (
	minCedulaDigits = 5
	maxCedulaDigits = 10
)

// NormalizeCedula strips the separators people type into a cédula
// ("1.020.304.050", "1020 304 050") and returns only the digits.
func NormalizeCedula(cedula string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(cedula) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || unicode.IsSpace(r):
		default:
			// kept so validation fails
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateCedula reports whether cedula is a Colombian cédula de ciudadanía:
// 5 to 10 digits once separators are removed.
func ValidateCedula(cedula string) bool {
	clean := NormalizeCedula(cedula)
	if len(clean) < minCedulaDigits || len(clean) > maxCedulaDigits {
		return false
	}
	for _, r := range clean {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
