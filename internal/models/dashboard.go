package models

// MunicipalityCount is one bucket of the municipality aggregation
type MunicipalityCount struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// DashboardSummary groups persisted registrants for display
type DashboardSummary struct {
	Total        int                 `json:"total"`
	PorEstado    map[Estado]int      `json:"por_estado"`
	PorRol       map[Rol]int         `json:"por_rol"`
	VotanEnBello int                 `json:"votan_en_bello"`
	Municipios   []MunicipalityCount `json:"municipios"`
}
