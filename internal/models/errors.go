package models

import "errors"

// Person errors
var (
	ErrPersonNotFound    = errors.New("persona no encontrada")
	ErrDuplicateCedula   = errors.New("ya existe una persona registrada con esta cédula")
	ErrCedulaImmutable   = errors.New("la cédula no se puede modificar")
	ErrLeaderNotFound    = errors.New("líder no encontrado")
	ErrNotALeader        = errors.New("la cédula indicada no pertenece a un líder")
	ErrCapacityExceeded  = errors.New("el líder alcanzó el máximo de integrantes en su equipo")
	ErrInvalidRol        = errors.New("rol inválido")
	ErrInvalidEstado     = errors.New("estado inválido")
	ErrInvalidAssignment = errors.New("asignación de equipo inválida")
	ErrValidation        = errors.New("datos inválidos")
	ErrConcurrentUpdate  = errors.New("la persona fue modificada por otra operación, intente de nuevo")
)

// Session errors
var (
	ErrInvalidCredentials = errors.New("credenciales inválidas")
	ErrFaceMismatch       = errors.New("verificación facial fallida")
	ErrSessionNotFound    = errors.New("sesión no encontrada o expirada")
	ErrForbidden          = errors.New("acceso denegado")
)

// Import errors
var (
	ErrUnmappableHeaders = errors.New("el archivo no contiene las columnas requeridas")
	ErrEmptyImport       = errors.New("el archivo no contiene filas")
)

// Chat errors
var (
	ErrEmptyMessage = errors.New("el mensaje no puede estar vacío")
)
