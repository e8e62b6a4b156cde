package utils

import "time"

// TruncateString shortens s to at most max runes, appending an ellipsis
// marker when it cuts anything off.
func TruncateString(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// Now returns the current time in UTC. All stored timestamps go through
// this so that rows compare cleanly regardless of server timezone.
func Now() time.Time {
	return time.Now().UTC()
}
