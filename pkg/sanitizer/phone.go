package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	"tourbook/pkg/locale"
)

// Numbers without a country code are tried against these regions in order.
var supportedRegions = locale.PhoneRegions()

// NormalizePhone returns phone in E.164, or "" when it is not a valid
// number in any supported region.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)

	if phone == "" {
		return ""
	}

	for _, region := range supportedRegions {
		parsed, err := phonenumbers.Parse(phone, region)
		if err != nil || !phonenumbers.IsValidNumber(parsed) {
			continue
		}
		return phonenumbers.Format(parsed, phonenumbers.E164)
	}
	return ""
}
