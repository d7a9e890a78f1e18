package transport

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rawrobot/sensor-publisher/internal/broker"
	"github.com/rawrobot/sensor-publisher/internal/mqtt"
	"github.com/rawrobot/sensor-publisher/internal/redis"
)

const (
	Redis = "redis"
	MQTT  = "mqtt"
)

var ErrUnknownTransport = errors.New("unknown transport")

// Opener builds a broker client; Open is the production implementation
type Opener func(cfg broker.Config, logger zerolog.Logger) (broker.Client, error)

// Normalize returns the canonical transport name, defaulting to redis
func Normalize(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Redis:
		return Redis, nil
	case MQTT:
		return MQTT, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTransport, name)
	}
}

// Open returns an unconnected client for the configured transport
func Open(cfg broker.Config, logger zerolog.Logger) (broker.Client, error) {
	name, err := Normalize(cfg.Transport)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger = logger.With().Str("transport", name).Logger()
	switch name {
	case MQTT:
		return mqtt.NewClient(cfg, logger), nil
	default:
		return redis.NewClient(cfg, logger), nil
	}
}
