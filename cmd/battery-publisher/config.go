package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/rawrobot/sensor-publisher/internal/broker"
	"github.com/rawrobot/sensor-publisher/internal/logging"
	"github.com/rawrobot/sensor-publisher/internal/reading"
	"github.com/rawrobot/sensor-publisher/internal/transport"
)

type Config struct {
	Logging logging.Config `toml:"logging"`
	Broker  broker.Config  `toml:"broker"`
	Reading ReadingConfig  `toml:"reading"`
}

type ReadingConfig struct {
	DevicePath     string   `toml:"device_path"`
	Characteristic string   `toml:"characteristic"`
	Value          *float64 `toml:"value"`
	Units          *string  `toml:"units"`
}

// Channel returns the channel the reading is published on
func (r ReadingConfig) Channel() string {
	return reading.Channel(r.DevicePath, r.Characteristic)
}

// Reading returns the configured reading, the battery level unless overridden
func (r ReadingConfig) Reading() reading.Reading {
	out := reading.BatteryLevel()
	if r.Value != nil {
		out.Value = *r.Value
	}
	if r.Units != nil {
		out.Units = *r.Units
	}
	return out
}

// DefaultConfig publishes the battery level to a local redis
func DefaultConfig() *Config {
	return &Config{
		Logging: logging.Config{Level: "info", Pretty: true},
		Broker: broker.Config{
			Transport:    transport.Redis,
			CleanSession: true,
		},
		Reading: ReadingConfig{
			DevicePath:     reading.DefaultDevicePath,
			Characteristic: reading.CurrentBatteryLevel,
		},
	}
}

// LoadConfig reads filename over the defaults. An empty filename yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	config := DefaultConfig()

	if filename != "" {
		if _, err := toml.DecodeFile(filename, config); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// Override credentials from environment variables
	if envUser := os.Getenv("BROKER_USER"); envUser != "" {
		config.Broker.Username = envUser
	}
	if envPass := os.Getenv("BROKER_PASSWORD"); envPass != "" {
		config.Broker.Password = envPass
	}

	name, err := transport.Normalize(config.Broker.Transport)
	if err != nil {
		return nil, err
	}
	config.Broker.Transport = name
	if name == transport.MQTT && config.Broker.ClientID == "" {
		config.Broker.ClientID = "battery-publisher"
	}

	if config.Reading.DevicePath == "" {
		config.Reading.DevicePath = reading.DefaultDevicePath
	}
	if config.Reading.Characteristic == "" {
		config.Reading.Characteristic = reading.CurrentBatteryLevel
	}

	if err := config.Broker.Validate(); err != nil {
		return nil, fmt.Errorf("invalid broker configuration: %w", err)
	}

	return config, nil
}
