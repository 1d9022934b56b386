package rules

import (
	"math"
	"sort"
	"strings"

	"github.com/crm-electoral/app-crm/internal/models"
)

// UndefinedMunicipio labels people without a voting-place municipality
const UndefinedMunicipio = "No definido"

// AggregateByMunicipality groups people by municipio_puesto and returns the
// buckets by descending count. Ties keep first-seen order. Percentages are
// rounded to two decimals.
func AggregateByMunicipality(people []models.Person) []models.MunicipalityCount {
	if len(people) == 0 {
		return []models.MunicipalityCount{}
	}

	index := make(map[string]int)
	buckets := make([]models.MunicipalityCount, 0)
	for _, p := range people {
		name := UndefinedMunicipio
		if p.MunicipioPuesto != nil && strings.TrimSpace(*p.MunicipioPuesto) != "" {
			name = *p.MunicipioPuesto
		}
		i, ok := index[name]
		if !ok {
			i = len(buckets)
			index[name] = i
			buckets = append(buckets, models.MunicipalityCount{Name: name})
		}
		buckets[i].Count++
	}

	total := float64(len(people))
	for i := range buckets {
		buckets[i].Percentage = roundTo2(float64(buckets[i].Count) * 100 / total)
	}

	sort.SliceStable(buckets, func(a, b int) bool {
		return buckets[a].Count > buckets[b].Count
	})
	return buckets
}

// CountByEstado tallies people per estado
func CountByEstado(people []models.Person) map[models.Estado]int {
	out := map[models.Estado]int{
		models.EstadoPendiente: 0,
		models.EstadoAprobado:  0,
		models.EstadoRechazado: 0,
	}
	for _, p := range people {
		out[p.Estado]++
	}
	return out
}

// CountByRol tallies people per persisted role
func CountByRol(people []models.Person) map[models.Rol]int {
	out := map[models.Rol]int{
		models.RolLider:    0,
		models.RolAsociado: 0,
		models.RolImpulsor: 0,
	}
	for _, p := range people {
		out[p.Rol]++
	}
	return out
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
