package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWhatsAppLink(t *testing.T) {
	t.Run("encodes spaces as %20", func(t *testing.T) {
		link, err := BuildWhatsAppLink("300 123 4567", "Hola Ana, ¿cómo estás?")
		require.NoError(t, err)
		assert.Equal(t, "https://wa.me/573001234567?text=Hola%20Ana%2C%20%C2%BFc%C3%B3mo%20est%C3%A1s%3F", link)
		assert.NotContains(t, link, "+")
	})

	t.Run("keeps literal plus encoded", func(t *testing.T) {
		link, err := BuildWhatsAppLink("3001234567", "1+1")
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(link, "?text=1%2B1"))
	})

	t.Run("no message", func(t *testing.T) {
		link, err := BuildWhatsAppLink("+573101234567", "")
		require.NoError(t, err)
		assert.Equal(t, "https://wa.me/573101234567", link)
	})

	t.Run("invalid phone", func(t *testing.T) {
		_, err := BuildWhatsAppLink("12345", "hola")
		assert.Error(t, err)
	})
}

func TestInvitationMessage(t *testing.T) {
	msg := InvitationMessage("Ana María Pérez", "Carlos Gómez", "https://crm.example.com/registro/1020304050")
	assert.Equal(t, "Hola Ana, Carlos Gómez te invita a registrarte en su equipo: https://crm.example.com/registro/1020304050", msg)

	assert.True(t, strings.HasPrefix(InvitationMessage("", "Carlos", "url"), "Hola, Carlos"))
}

func TestApprovalMessage(t *testing.T) {
	msg := ApprovalMessage("Luis Ramírez", "APROBADO")
	assert.Contains(t, msg, "Hola Luis")
	assert.Contains(t, msg, "APROBADO")
}
