package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawrobot/sensor-publisher/internal/reading"
	"github.com/rawrobot/sensor-publisher/internal/transport"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "publisher.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("BROKER_USER", "")
	t.Setenv("BROKER_PASSWORD", "")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, transport.Redis, config.Broker.Transport)
	assert.Empty(t, config.Broker.Server)
	assert.Equal(t, reading.BatteryLevelChannel, config.Reading.Channel())
	assert.Equal(t, reading.BatteryLevel(), config.Reading.Reading())
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("BROKER_USER", "")
	t.Setenv("BROKER_PASSWORD", "secret")

	path := writeConfig(t, `
[logging]
level = "debug"

[broker]
transport = "mqtt"
server = "tcp://broker.local:1883"
qos = 1

[reading]
device_path = "/home/sensors/EFGH5678/"
characteristic = "current_temperature"
value = 21.5
units = "C"
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, transport.MQTT, config.Broker.Transport)
	assert.Equal(t, "battery-publisher", config.Broker.ClientID)
	assert.Equal(t, byte(1), config.Broker.QoS)
	assert.Equal(t, "secret", config.Broker.Password)
	assert.Equal(t, "/home/sensors/EFGH5678/current_temperature", config.Reading.Channel())
	assert.Equal(t, reading.Reading{Value: 21.5, Units: "C"}, config.Reading.Reading())
}

func TestLoadConfigPartialReading(t *testing.T) {
	path := writeConfig(t, "[reading]\nvalue = 12.0\n")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, reading.Reading{Value: 12, Units: "%"}, config.Reading.Reading())
	assert.Equal(t, reading.BatteryLevelChannel, config.Reading.Channel())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "[broker]\ntransport = \"amqp\"\n"))
	assert.ErrorIs(t, err, transport.ErrUnknownTransport)

	_, err = LoadConfig(writeConfig(t, "[broker]\nconnect_timeout = \"later\"\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "[broker]\ntls_key_file = \"client.key\"\n"))
	assert.Error(t, err)
}
