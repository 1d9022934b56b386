package utils

import (
	"strings"
	"unicode"
)

// ExtractFirstName extracts the first name from a full name
func ExtractFirstName(fullName string) string {
	parts := strings.FieldsFunc(strings.TrimSpace(fullName), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// MaskName masks every name part but the first for logs, e.g.
// "Ana María Pérez" -> "Ana M**** P****".
func MaskName(fullName string) string {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return ""
	}

	masked := make([]string, len(parts))
	masked[0] = parts[0]
	for i, part := range parts[1:] {
		runes := []rune(part)
		masked[i+1] = string(runes[0]) + strings.Repeat("*", len(runes)-1)
	}
	return strings.Join(masked, " ")
}
