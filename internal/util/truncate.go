package util

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxBodyLen bounds gateway response bodies kept in logs and errors.
const MaxBodyLen = 1024

// Truncate shortens s to at most maxLen bytes without splitting a rune and
// notes the original size.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}

// TruncateBody trims and truncates a response body to MaxBodyLen.
func TruncateBody(b []byte) string {
	return Truncate(strings.TrimSpace(string(b)), MaxBodyLen)
}

// Mask hides all but the edges of a secret for display.
func Mask(secret string) string {
	if len(secret) <= 8 {
		if len(secret) > 0 {
			return secret[:1] + "***"
		}
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
