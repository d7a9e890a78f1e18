package mqtt

import (
	"strings"
	"unicode"
)

const maxPayloadDisplay = 512

// TruncateTopic truncates a topic to show only the last N levels.
// A leading "/" produces an empty first level, which counts like any other.
// Example: "A/B/C/D" with depth 2 returns "C/D"
func TruncateTopic(topic string, depth int) string {
	if depth <= 0 {
		return topic
	}

	parts := strings.Split(topic, "/")
	if len(parts) <= depth {
		return topic
	}

	return strings.Join(parts[len(parts)-depth:], "/")
}

// SanitizePayload makes a payload safe for single-line display
func SanitizePayload(payload []byte) string {
	content := string(payload)

	if len(content) > maxPayloadDisplay {
		content = content[:maxPayloadDisplay] + "..."
	}

	sanitized := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, content)

	// Collapse runs of whitespace
	return strings.Join(strings.Fields(sanitized), " ")
}
