package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/rawrobot/sensor-publisher/internal/broker"
	"github.com/rawrobot/sensor-publisher/internal/logging"
	"github.com/rawrobot/sensor-publisher/internal/reading"
	"github.com/rawrobot/sensor-publisher/internal/transport"
)

type Config struct {
	Logging     logging.Config     `toml:"logging"`
	Connections []ConnectionConfig `toml:"connection"`
	Display     DisplayConfig      `toml:"display"`
	Metrics     MetricsConfig      `toml:"metrics"`
}

type DisplayConfig struct {
	TopicDepth int  `toml:"topic_depth"` // Number of channel levels to show from the end
	Truncate   bool `toml:"truncate"`
}

type MetricsConfig struct {
	Listen string `toml:"listen"` // empty disables the HTTP endpoint
}

type ConnectionConfig struct {
	broker.Config
	Name         string   `toml:"name"`
	Channels     []string `toml:"channels"`
	DevicePaths  []string `toml:"device_paths"` // expanded to every known characteristic
	ClientIDBase string   `toml:"client_id_base"`
}

var characteristics = []string{
	reading.CurrentBatteryLevel,
	reading.CurrentTemperature,
	reading.CurrentRelativeHumidity,
	reading.TargetTemperature,
}

func LoadConfig(filename string) (*Config, error) {
	var config Config

	config.Display.TopicDepth = 2
	config.Logging.SessionLogMaxDuration = "1h"

	_, err := toml.DecodeFile(filename, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	for i := range config.Connections {
		conn := &config.Connections[i]

		if envUser := os.Getenv(fmt.Sprintf("BROKER_USER_%d", i)); envUser != "" {
			conn.Username = envUser
		}
		if envPass := os.Getenv(fmt.Sprintf("BROKER_PASSWORD_%d", i)); envPass != "" {
			conn.Password = envPass
		}

		// Global environment variables (for single connection setups)
		if len(config.Connections) == 1 {
			if envUser := os.Getenv("BROKER_USER"); envUser != "" {
				conn.Username = envUser
			}
			if envPass := os.Getenv("BROKER_PASSWORD"); envPass != "" {
				conn.Password = envPass
			}
		}
	}

	for i := range config.Connections {
		conn := &config.Connections[i]
		if conn.Name == "" {
			conn.Name = fmt.Sprintf("Connection-%d", i+1)
		}

		name, err := transport.Normalize(conn.Transport)
		if err != nil {
			return nil, fmt.Errorf("connection %s: %w", conn.Name, err)
		}
		conn.Transport = name

		for _, path := range conn.DevicePaths {
			for _, characteristic := range characteristics {
				conn.Channels = append(conn.Channels, reading.Channel(path, characteristic))
			}
		}
		conn.Channels = dedupe(conn.Channels)
		if len(conn.Channels) == 0 {
			return nil, fmt.Errorf("at least one channel is required for connection %s", conn.Name)
		}

		if conn.ClientIDBase == "" {
			conn.ClientIDBase = "sensor-monitor-" + conn.Name
		}
		conn.ClientIDBase = strings.Join(strings.Fields(conn.ClientIDBase), "-")

		if err := conn.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration for connection %s: %w", conn.Name, err)
		}
		if broker.NeedsTLS(conn.Config) && conn.TLSInsecureSkipVerify {
			fmt.Fprintf(os.Stderr, "WARNING: TLS certificate verification disabled for %s - this is insecure!\n", conn.Name)
		}
	}

	if config.Display.TopicDepth < 1 {
		config.Display.TopicDepth = 2
	}

	if config.Logging.EnableSessionLog {
		if _, err := time.ParseDuration(config.Logging.SessionLogMaxDuration); err != nil {
			return nil, fmt.Errorf("invalid session_log_max_duration: %w", err)
		}
		if config.Logging.OutputDir == "" {
			config.Logging.OutputDir = "logs"
		}
	}

	return &config, nil
}

// BrokerConfig returns the broker settings with a unique client id.
// Monitors reconnect on their own, unlike the one-shot publisher.
func (c *ConnectionConfig) BrokerConfig() broker.Config {
	cfg := c.Config
	cfg.ClientID = c.GetUniqueClientID()
	cfg.CleanSession = true
	cfg.ConnectRetry = true
	return cfg
}

func (c *ConnectionConfig) GetUniqueClientID() string {
	return fmt.Sprintf("%s-%d", c.ClientIDBase, time.Now().Unix())
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
