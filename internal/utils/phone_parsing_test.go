package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhoneNumber(t *testing.T) {
	tests := []struct {
		name      string
		phone     string
		wantE164  string
		wantErr   bool
		wantValid bool
	}{
		{name: "plain mobile", phone: "3001234567", wantE164: "+573001234567", wantValid: true},
		{name: "mobile with spaces", phone: "310 123 4567", wantE164: "+573101234567", wantValid: true},
		{name: "mobile with dashes", phone: "320-123-4567", wantE164: "+573201234567", wantValid: true},
		{name: "unassigned range", phone: "1234567890", wantE164: "+571234567890", wantValid: true},
		{name: "with country code", phone: "+57 300 123 4567", wantE164: "+573001234567"},
		{name: "country code without plus", phone: "573001234567", wantE164: "+573001234567"},
		{name: "nine digits", phone: "300123456", wantErr: true},
		{name: "eleven digits", phone: "30012345678", wantErr: true},
		{name: "empty", phone: "", wantErr: true},
		{name: "letters", phone: "abcdefghij", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantValid, ValidatePhone(tt.phone))

			got, err := ParsePhoneNumber(tt.phone)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "57", got.CountryCode)
			assert.Equal(t, tt.wantE164, got.E164)
			assert.Len(t, got.National, 10)
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "3001234567", NormalizePhone("(300) 123-4567"))
	assert.Equal(t, "", NormalizePhone("sin número"))
}

func TestPhoneSuffix(t *testing.T) {
	assert.Equal(t, "4567", PhoneSuffix("300 123 4567", 4))
	assert.Equal(t, "", PhoneSuffix("12", 4))
}
