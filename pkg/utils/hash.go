package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// HashString returns the hex SHA-256 of input
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// PhoneRef is a short stable reference to a phone number, safe to log.
// Formatting is ignored, so "+60 12-345" and "6012345" share a ref.
func PhoneRef(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return ""
	}
	return HashString(digits)[:12]
}
