package transport

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawrobot/sensor-publisher/internal/broker"
	"github.com/rawrobot/sensor-publisher/internal/mqtt"
	"github.com/rawrobot/sensor-publisher/internal/redis"
)

func TestOpenSelectsTransport(t *testing.T) {
	client, err := Open(broker.Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &redis.Client{}, client)

	client, err = Open(broker.Config{Transport: "MQTT"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &mqtt.Client{}, client)
	assert.False(t, client.IsConnected())
}

func TestOpenRejects(t *testing.T) {
	_, err := Open(broker.Config{Transport: "kafka"}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnknownTransport)

	_, err = Open(broker.Config{Transport: "mqtt", QoS: 5}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	for in, want := range map[string]string{"": Redis, " redis ": Redis, "Mqtt": MQTT} {
		got, err := Normalize(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
