package utils

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is the region used to parse national numbers
const DefaultRegion = "CO"

const nationalPhoneDigits = 10

// PhoneComponents represents the parsed components of a phone number
type PhoneComponents struct {
	CountryCode string `json:"country_code"`
	National    string `json:"national"`
	E164        string `json:"e164"`
}

// NormalizePhone keeps only the digits of a phone typed with spaces,
// dashes or parentheses.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParsePhoneNumber parses a Colombian phone number. The national form must be
// exactly 10 digits; a leading +57 or 57 country prefix is accepted.
func ParsePhoneNumber(phoneString string) (*PhoneComponents, error) {
	digits := NormalizePhone(phoneString)
	if len(digits) == nationalPhoneDigits+2 && strings.HasPrefix(digits, "57") {
		digits = digits[2:]
	}
	if len(digits) != nationalPhoneDigits {
		return nil, fmt.Errorf("phone number must have %d digits: %s", nationalPhoneDigits, phoneString)
	}

	num, err := phonenumbers.Parse(digits, DefaultRegion)
	if err != nil {
		return nil, fmt.Errorf("failed to parse phone number: %w", err)
	}

	return &PhoneComponents{
		CountryCode: fmt.Sprintf("%d", num.GetCountryCode()),
		National:    phonenumbers.GetNationalSignificantNumber(num),
		E164:        phonenumbers.Format(num, phonenumbers.E164),
	}, nil
}

// ValidatePhone reports whether phone has exactly 10 digits once spaces,
// dashes and parentheses are dropped. A country prefix is not accepted here.
func ValidatePhone(phone string) bool {
	return len(NormalizePhone(phone)) == nationalPhoneDigits
}

// PhoneSuffix returns the last n digits of phone, or "" when it is shorter.
func PhoneSuffix(phone string, n int) string {
	digits := NormalizePhone(phone)
	if len(digits) < n {
		return ""
	}
	return digits[len(digits)-n:]
}
