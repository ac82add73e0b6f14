package nest

import "strings"

// addressSourceLen is how many leading serial characters form the address.
const addressSourceLen = 14

var separatorStripper = strings.NewReplacer("-", "", "_", "")

// Address derives the local address of a thermostat from its serial.
//
// The first 14 characters are kept, '-' and '_' are removed and the result
// is lowercased. Serials that share those 14 characters collide; no check
// is made.
//
// Example: "09AA-01AC_4316003F" → "09aa01ac4316"
func Address(serial string) string {
	runes := []rune(serial)
	if len(runes) > addressSourceLen {
		runes = runes[:addressSourceLen]
	}
	return strings.ToLower(separatorStripper.Replace(string(runes)))
}
