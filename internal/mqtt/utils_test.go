package mqtt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateTopic(t *testing.T) {
	tests := []struct {
		topic string
		depth int
		want  string
	}{
		{"A/B/C/D", 2, "C/D"},
		{"A/B", 3, "A/B"},
		{"A/B/C", 0, "A/B/C"},
		{"/home/sensors/ABCD1234/current_battery_level", 2, "ABCD1234/current_battery_level"},
		{"/home/sensors", 3, "/home/sensors"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TruncateTopic(tt.topic, tt.depth), tt.topic)
	}
}

func TestSanitizePayload(t *testing.T) {
	assert.Equal(t, `{"value": 60.1, "units": "%"}`, SanitizePayload([]byte("{\"value\": 60.1,\n\t\"units\": \"%\"}")))
	assert.Equal(t, "a b", SanitizePayload([]byte("a\x00\x01b")))

	long := SanitizePayload([]byte(strings.Repeat("x", 600)))
	assert.Len(t, long, maxPayloadDisplay+3)
	assert.True(t, strings.HasSuffix(long, "..."))
}
