package utils

import (
	"fmt"
	"net/url"
	"strings"
)

const whatsAppBaseURL = "https://wa.me/"

// BuildWhatsAppLink builds a wa.me deep link that opens a chat with phone and
// the message pre-filled. The phone is validated as a Colombian number and
// the text is percent-encoded with spaces as %20.
func BuildWhatsAppLink(phone, message string) (string, error) {
	components, err := ParsePhoneNumber(phone)
	if err != nil {
		return "", err
	}

	target := components.CountryCode + components.National
	if message == "" {
		return whatsAppBaseURL + target, nil
	}

	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return fmt.Sprintf("%s%s?text=%s", whatsAppBaseURL, target, text), nil
}

// InvitationMessage is the text sent with a self-registration link.
func InvitationMessage(nombre, leaderName, registrationURL string) string {
	greeting := "Hola"
	if first := ExtractFirstName(nombre); first != "" {
		greeting = "Hola " + first
	}
	return fmt.Sprintf("%s, %s te invita a registrarte en su equipo: %s", greeting, leaderName, registrationURL)
}

// ApprovalMessage is the text telling a registrant their status.
func ApprovalMessage(nombre, estado string) string {
	greeting := "Hola"
	if first := ExtractFirstName(nombre); first != "" {
		greeting = "Hola " + first
	}
	return fmt.Sprintf("%s, tu registro quedó en estado %s. ¡Gracias por tu apoyo!", greeting, estado)
}
