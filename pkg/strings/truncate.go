// Package strings holds string helpers shared by the output formatters.
package strings

import (
	"strings"
)

// DefaultDetailMaxLen is the default width of free-text columns such as
// step details and service status messages.
const DefaultDetailMaxLen = 60

// MinTruncateLen is the minimum maxLen value for Truncate.
// Values smaller than this would not leave room for meaningful content plus "...".
const MinTruncateLen = 4

// Truncate collapses s onto a single line and shortens it to maxLen runes,
// ending in "..." when it was cut. Installer output often spans several
// lines; table cells must not.
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
