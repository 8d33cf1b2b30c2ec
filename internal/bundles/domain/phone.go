package domain

import "strings"

// Kenyan numbering plan constants. Canonical form is the 12-digit MSISDN:
// country code followed by the 9-digit subscriber number, no "+" and no
// trunk "0".
const (
	phoneCountryCode     = "254"
	phoneTrunkPrefix     = "0"
	phoneSubscriberLead  = "7"
	canonicalPhoneLength = 12
)

// NormalizePhone converts a user-entered phone number into canonical form.
// It strips every non-digit character and then accepts exactly three shapes:
//
//	2547XXXXXXXX (already canonical)
//	07XXXXXXXX   (trunk prefix, replaced with the country code)
//	7XXXXXXXX    (bare subscriber number, country code prepended)
//
// Any other length or prefix fails with ErrInvalidPhone. The function is
// pure: no I/O, no panics.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == canonicalPhoneLength && strings.HasPrefix(digits, phoneCountryCode):
		return digits, nil
	case len(digits) == 10 && strings.HasPrefix(digits, phoneTrunkPrefix+phoneSubscriberLead):
		return phoneCountryCode + digits[1:], nil
	case len(digits) == 9 && strings.HasPrefix(digits, phoneSubscriberLead):
		return phoneCountryCode + digits, nil
	default:
		return "", ErrInvalidPhone
	}
}
