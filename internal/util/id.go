package util

import (
	"math/rand/v2"
	"strings"
)

// GenerateID generates a random ID in the format "{prefix}{hex_string}".
// Message and timer IDs across LeadChat use this scheme; the prefix encodes
// the entity kind (e.g. "msg-").
func GenerateID(prefix string, hexLength int) string {
	return prefix + GenerateHex(hexLength)
}

// GenerateHex generates a random hexadecimal string of the specified length.
// Uses math/rand/v2; IDs are identifiers, not secrets.
func GenerateHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}
