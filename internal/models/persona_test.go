package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRol_Valid(t *testing.T) {
	assert.True(t, RolLider.Valid())
	assert.True(t, RolAsociado.Valid())
	assert.True(t, RolImpulsor.Valid())
	assert.False(t, Rol("admin").Valid(), "admin is a session role and must never be persisted")
	assert.False(t, Rol("").Valid())
	assert.False(t, Rol("LIDER").Valid())
}

func TestRol_IsTeamMember(t *testing.T) {
	assert.False(t, RolLider.IsTeamMember())
	assert.True(t, RolAsociado.IsTeamMember())
	assert.True(t, RolImpulsor.IsTeamMember())
}

func TestEstado_Valid(t *testing.T) {
	for _, e := range []Estado{EstadoPendiente, EstadoAprobado, EstadoRechazado} {
		assert.True(t, e.Valid(), e)
	}
	assert.False(t, Estado("aprobado").Valid())
	assert.False(t, Estado("").Valid())
}

func TestSessionIdentity_CanManage(t *testing.T) {
	lider := "1017000001"
	other := "1017000002"

	admin := SessionIdentity{Role: SessionAdmin}
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.CanManage(nil))
	assert.True(t, admin.CanManage(&other))

	leader := SessionIdentity{Role: SessionLider, Cedula: lider}
	assert.False(t, leader.IsAdmin())
	assert.True(t, leader.CanManage(&lider))
	assert.False(t, leader.CanManage(&other))
	assert.False(t, leader.CanManage(nil))
}

func TestSession_Identity(t *testing.T) {
	s := Session{ID: "abc", Cedula: "1017000001", Nombre: "Ana", Role: SessionLider}

	assert.Equal(t, SessionIdentity{SessionID: "abc", Cedula: "1017000001", Nombre: "Ana", Role: SessionLider}, s.Identity())
}

func TestAdminCode_RequiresFace(t *testing.T) {
	assert.False(t, (&AdminCode{}).RequiresFace())
	assert.True(t, (&AdminCode{FaceDescriptor: []float64{0.1}}).RequiresFace())
}
