package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionRole is the identity a session acts as. It is never persisted on a
// person row.
type SessionRole string

const (
	SessionAdmin SessionRole = "admin"
	SessionLider SessionRole = "lider"
)

// SessionIdentity is the explicit caller identity handed to every service call
type SessionIdentity struct {
	SessionID string      `json:"session_id"`
	Cedula    string      `json:"cedula,omitempty"`
	Nombre    string      `json:"nombre"`
	Role      SessionRole `json:"role"`
}

// IsAdmin reports whether the identity acts as an administrator
func (s SessionIdentity) IsAdmin() bool {
	return s.Role == SessionAdmin
}

// CanManage reports whether the identity may act on a member of the given leader's team
func (s SessionIdentity) CanManage(cedulaLider *string) bool {
	if s.IsAdmin() {
		return true
	}
	return s.Role == SessionLider && cedulaLider != nil && *cedulaLider == s.Cedula
}

// Session is a row of the sesiones collection
type Session struct {
	ID        string      `bson:"_id" json:"id"`
	Cedula    string      `bson:"cedula,omitempty" json:"cedula,omitempty"`
	Nombre    string      `bson:"nombre" json:"nombre"`
	Role      SessionRole `bson:"role" json:"role"`
	AdminCode string      `bson:"admin_code_id,omitempty" json:"-"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time   `bson:"expires_at" json:"expires_at"`
}

// Identity converts the stored session to the identity passed around handlers
func (s *Session) Identity() SessionIdentity {
	return SessionIdentity{
		SessionID: s.ID,
		Cedula:    s.Cedula,
		Nombre:    s.Nombre,
		Role:      s.Role,
	}
}

// SessionClaims are the claims of the signed session token
type SessionClaims struct {
	Cedula string      `json:"cedula,omitempty"`
	Role   SessionRole `json:"role"`
	jwt.RegisteredClaims
}

// AdminCode is a row of the admin_codes collection
type AdminCode struct {
	ID             string    `bson:"_id" json:"id"`
	Label          string    `bson:"label" json:"label"`
	CodeHash       string    `bson:"code_hash" json:"-"`
	FaceDescriptor []float64 `bson:"face_descriptor,omitempty" json:"-"`
	Active         bool      `bson:"active" json:"active"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// RequiresFace reports whether logging in with this code needs a face match
func (a *AdminCode) RequiresFace() bool {
	return len(a.FaceDescriptor) > 0
}

// AdminLoginRequest is the admin login payload
type AdminLoginRequest struct {
	Code           string    `json:"code" binding:"required"`
	FaceDescriptor []float64 `json:"face_descriptor,omitempty"`
}

// LeaderLoginRequest is the leader login payload
type LeaderLoginRequest struct {
	Cedula         string `json:"cedula" binding:"required"`
	TelefonoSufijo string `json:"telefono_sufijo,omitempty"`
}

// LoginResponse carries the session token
type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Identity  SessionIdentity `json:"identity"`
}

// IdentityContextKey is the gin context key holding the caller's SessionIdentity
const IdentityContextKey = "identity"

// AdminCodeRequest enrolls a new admin access code
type AdminCodeRequest struct {
	Label          string    `json:"label" binding:"required"`
	Code           string    `json:"code" binding:"required"`
	FaceDescriptor []float64 `json:"face_descriptor,omitempty"`
}
