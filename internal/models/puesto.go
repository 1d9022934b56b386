package models

// PuestoVotacion is a row of the puestos_votacion reference table
type PuestoVotacion struct {
	Departamento string `bson:"departamento" json:"departamento"`
	Municipio    string `bson:"municipio" json:"municipio"`
	Puesto       string `bson:"puesto" json:"puesto"`
	Direccion    string `bson:"direccion,omitempty" json:"direccion,omitempty"`
	Mesas        int    `bson:"mesas,omitempty" json:"mesas,omitempty"`
}
