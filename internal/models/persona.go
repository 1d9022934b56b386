package models

import (
	"time"
)

// Rol is a role persisted on a person row. The admin identity is never a Rol;
// it only exists as a SessionRole.
type Rol string

const (
	RolLider    Rol = "lider"
	RolAsociado Rol = "asociado"
	RolImpulsor Rol = "impulsor"
)

// Valid reports whether r may be stored on a person
func (r Rol) Valid() bool {
	switch r {
	case RolLider, RolAsociado, RolImpulsor:
		return true
	}
	return false
}

// IsTeamMember reports whether r belongs under a leader
func (r Rol) IsTeamMember() bool {
	return r == RolAsociado || r == RolImpulsor
}

// Estado is the approval status of a registrant
type Estado string

const (
	EstadoPendiente Estado = "PENDIENTE"
	EstadoAprobado  Estado = "APROBADO"
	EstadoRechazado Estado = "RECHAZADO"
)

// Valid reports whether e is one of the known estados
func (e Estado) Valid() bool {
	switch e {
	case EstadoPendiente, EstadoAprobado, EstadoRechazado:
		return true
	}
	return false
}

// MunicipioDesconocido is the dropdown value for "I don't know"
const MunicipioDesconocido = "No Se"

// Person is a row of the personas collection
type Person struct {
	Cedula            string    `bson:"cedula" json:"cedula"`
	NombreCompleto    string    `bson:"nombre_completo" json:"nombre_completo"`
	Telefono          *string   `bson:"telefono,omitempty" json:"telefono,omitempty"`
	Email             *string   `bson:"email,omitempty" json:"email,omitempty"`
	Rol               Rol       `bson:"rol" json:"rol"`
	CedulaLider       *string   `bson:"cedula_lider" json:"cedula_lider"`
	MunicipioVotacion *string   `bson:"municipio_votacion,omitempty" json:"municipio_votacion,omitempty"`
	MunicipioPuesto   *string   `bson:"municipio_puesto,omitempty" json:"municipio_puesto,omitempty"`
	PuestoVotacion    *string   `bson:"puesto_votacion,omitempty" json:"puesto_votacion,omitempty"`
	MesaVotacion      *string   `bson:"mesa_votacion,omitempty" json:"mesa_votacion,omitempty"`
	VotaEnBello       bool      `bson:"vota_en_bello" json:"vota_en_bello"`
	VotosPrometidos   int       `bson:"votos_prometidos" json:"votos_prometidos"`
	Estado            Estado    `bson:"estado" json:"estado"`
	Notas             *string   `bson:"notas,omitempty" json:"notas,omitempty"`
	TeamVersion       int64     `bson:"team_version,omitempty" json:"-"`
	FechaRegistro     time.Time `bson:"fecha_registro" json:"fecha_registro"`
	CreatedAt         time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at" json:"updated_at"`
}

// IsLeader reports whether the person heads a team
func (p *Person) IsLeader() bool {
	return p.Rol == RolLider
}

// PersonInput is the registration payload
type PersonInput struct {
	Cedula            string  `json:"cedula" binding:"required"`
	NombreCompleto    string  `json:"nombre_completo" binding:"required"`
	Telefono          *string `json:"telefono,omitempty"`
	Email             *string `json:"email,omitempty"`
	Rol               Rol     `json:"rol"`
	CedulaLider       *string `json:"cedula_lider,omitempty"`
	MunicipioVotacion *string `json:"municipio_votacion,omitempty"`
	MunicipioPuesto   *string `json:"municipio_puesto,omitempty"`
	PuestoVotacion    *string `json:"puesto_votacion,omitempty"`
	MesaVotacion      *string `json:"mesa_votacion,omitempty"`
	VotosPrometidos   int     `json:"votos_prometidos,omitempty"`
	Notas             *string `json:"notas,omitempty"`
}

// PersonPatch is an admin or leader edit. Nil fields are left untouched.
type PersonPatch struct {
	NombreCompleto    *string `json:"nombre_completo,omitempty"`
	Telefono          *string `json:"telefono,omitempty"`
	Email             *string `json:"email,omitempty"`
	Rol               *Rol    `json:"rol,omitempty"`
	CedulaLider       *string `json:"cedula_lider,omitempty"`
	ClearLider        bool    `json:"clear_lider,omitempty"`
	MunicipioVotacion *string `json:"municipio_votacion,omitempty"`
	MunicipioPuesto   *string `json:"municipio_puesto,omitempty"`
	PuestoVotacion    *string `json:"puesto_votacion,omitempty"`
	MesaVotacion      *string `json:"mesa_votacion,omitempty"`
	VotosPrometidos   *int    `json:"votos_prometidos,omitempty"`
	Estado            *Estado `json:"estado,omitempty"`
	Notas             *string `json:"notas,omitempty"`
	// AssignedCedulas is only read when Rol changes to lider
	AssignedCedulas []string `json:"assigned_cedulas,omitempty"`
}

// EstadoRequest is the admin approve/reject payload
type EstadoRequest struct {
	Estado Estado  `json:"estado" binding:"required"`
	Notas  *string `json:"notas,omitempty"`
}

// PromoteRequest is the body of the promote-to-leader endpoint
type PromoteRequest struct {
	AssignedCedulas []string `json:"assigned_cedulas"`
}

// PersonListResponse represents a paginated list of persons
type PersonListResponse struct {
	Personas   []Person       `json:"personas"`
	Pagination PaginationInfo `json:"pagination"`
}

// TeamResponse is a leader together with its direct team
type TeamResponse struct {
	Lider      Person   `json:"lider"`
	Asociados  []Person `json:"asociados"`
	Impulsores []Person `json:"impulsores"`
	Capacidad  int      `json:"capacidad"`
	// Remaining slots per role
	CuposAsociados  int `json:"cupos_asociados"`
	CuposImpulsores int `json:"cupos_impulsores"`
}

// PaginationInfo describes a page of results
type PaginationInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
