package brokerauth

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhoneE164 canonicalizes a phone number claim to E.164.
// Parseable numbers are reformatted to strip separators; anything else
// keeps its digits and gains exactly one leading "+".
func NormalizePhoneE164(raw string) string {
	phone := strings.TrimSpace(raw)
	if phone == "" {
		return ""
	}

	if num, err := phonenumbers.Parse(phone, ""); err == nil {
		if formatted := phonenumbers.Format(num, phonenumbers.E164); formatted != "" {
			return formatted
		}
	}

	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}

	return phone
}
