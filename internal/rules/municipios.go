package rules

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/crm-electoral/app-crm/internal/models"
)

//go:embed municipios_antioquia.txt
var municipiosRaw string

var (
	municipiosOnce sync.Once
	municipios     []string
	municipiosIdx  map[string]string
)

func loadMunicipios() {
	municipiosOnce.Do(func() {
		municipiosIdx = make(map[string]string)
		for _, line := range strings.Split(municipiosRaw, "\n") {
			name := strings.TrimSpace(line)
			if name == "" {
				continue
			}
			municipios = append(municipios, name)
			municipiosIdx[Normalize(name)] = name
		}
	})
}

// MunicipiosAntioquia returns the dropdown list of municipalities
func MunicipiosAntioquia() []string {
	loadMunicipios()
	out := make([]string, len(municipios))
	copy(out, municipios)
	return out
}

// CanonicalMunicipio maps free text (any case, with or without accents) to
// the canonical Antioquia municipality name. The unknown sentinel passes through.
func CanonicalMunicipio(input string) (string, bool) {
	if SameLocation(input, models.MunicipioDesconocido) {
		return models.MunicipioDesconocido, true
	}
	loadMunicipios()
	name, ok := municipiosIdx[Normalize(input)]
	return name, ok
}
