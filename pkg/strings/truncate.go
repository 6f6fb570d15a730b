// Package strings holds small text helpers for terminal and log output.
package strings

import (
	"strings"
)

// MaxErrorBodyLen bounds how much of a vendor response body is kept in an
// error message. Failed sign-ins often return a full HTML page.
const MaxErrorBodyLen = 200

// MinTruncateLen is the smallest maxLen Truncate honours.
const MinTruncateLen = 4

// Truncate collapses all whitespace runs in s to single spaces and cuts the
// result to at most maxLen runes, ending in "..." when shortened.
func Truncate(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
