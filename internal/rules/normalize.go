// Package rules holds the campaign business rules shared by every entry point
// that creates or edits a person: location normalization, status derivation,
// the team capacity guard and dashboard aggregation.
package rules

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// UnknownLocation is what Normalize returns for empty input
const UnknownLocation = "UNKNOWN"

// Normalize returns the canonical matching key for a place name: trimmed,
// inner whitespace collapsed, diacritics stripped and uppercased.
func Normalize(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return UnknownLocation
	}

	// transformers carry state, build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, trimmed)
	if err != nil {
		stripped = trimmed
	}

	return strings.ToUpper(strings.Join(strings.Fields(stripped), " "))
}

// SameLocation reports whether two free-text place names refer to the same place
func SameLocation(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Canonicalize returns the entry of list matching input after normalization.
func Canonicalize(input string, list []string) (string, bool) {
	key := Normalize(input)
	if key == UnknownLocation {
		return "", false
	}
	for _, candidate := range list {
		if Normalize(candidate) == key {
			return candidate, true
		}
	}
	return "", false
}
