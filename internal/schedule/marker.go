package schedule

import "strings"

// Marker prefixes every payload the scheduler re-injects into the message
// pipeline, so downstream handling can tell a fired delivery apart from
// text a human typed.
const Marker = "[DELAYED_COMMAND] "

// Mark wraps a payload for re-injection. Already-marked payloads are left
// untouched so a re-scheduled delivery never gains a second prefix.
func Mark(payload string) string {
	if strings.HasPrefix(payload, Marker) {
		return payload
	}
	return Marker + payload
}

// Unmark strips the re-injection marker and reports whether it was present.
func Unmark(payload string) (string, bool) {
	return strings.CutPrefix(payload, Marker)
}
