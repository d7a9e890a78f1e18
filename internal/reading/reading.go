package reading

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultDevicePath is the channel prefix of the simulated sensor
	DefaultDevicePath = "/home/sensors/ABCD1234"

	CurrentBatteryLevel     = "current_battery_level"
	CurrentTemperature      = "current_temperature"
	CurrentRelativeHumidity = "current_relative_humidity"
	TargetTemperature       = "target_temperature"

	// BatteryLevelChannel is where battery readings are published
	BatteryLevelChannel = DefaultDevicePath + "/" + CurrentBatteryLevel
)

var (
	ErrMissingValue = errors.New("reading has no value")
	ErrMissingUnits = errors.New("reading has no units")
)

// Reading is a single sensor value as carried on the wire
type Reading struct {
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

// BatteryLevel returns the simulated battery reading
func BatteryLevel() Reading {
	return Reading{Value: 60.1, Units: "%"}
}

// Channel builds the channel name for a characteristic of a device.
// Example: ("/home/sensors/ABCD1234", "current_battery_level")
// returns "/home/sensors/ABCD1234/current_battery_level"
func Channel(devicePath, characteristic string) string {
	return strings.TrimRight(devicePath, "/") + "/" + characteristic
}

// Encode serializes the reading to UTF-8 JSON
func (r Reading) Encode() ([]byte, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reading: %w", err)
	}
	return payload, nil
}

func (r Reading) String() string {
	return strconv.FormatFloat(r.Value, 'f', -1, 64) + " " + r.Units
}

// wireReading detects absent keys, which a plain Reading would zero out
type wireReading struct {
	Value *float64 `json:"value"`
	Units *string  `json:"units"`
}

// Decode parses a payload and requires both value and units to be present
func Decode(payload []byte) (Reading, error) {
	var w wireReading
	if err := json.Unmarshal(payload, &w); err != nil {
		return Reading{}, fmt.Errorf("failed to decode reading: %w", err)
	}
	if w.Value == nil {
		return Reading{}, ErrMissingValue
	}
	if w.Units == nil {
		return Reading{}, ErrMissingUnits
	}
	return Reading{Value: *w.Value, Units: *w.Units}, nil
}
