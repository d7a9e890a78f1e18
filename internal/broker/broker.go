package broker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotConnected = errors.New("client is not connected")

const DefaultConnectTimeout = 10 * time.Second

// Message represents a message received on a pub/sub channel
type Message struct {
	Channel   string
	Payload   []byte
	QoS       byte
	Retained  bool
	Timestamp time.Time
}

// MessageHandler is a function type for handling received messages
type MessageHandler func(msg Message)

// ConnectionHandler is a function type for handling connection events
type ConnectionHandler func(connected bool, err error)

// Client is a connection to a pub/sub broker
type Client interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) error
	SetMessageHandler(handler MessageHandler)
	SetConnectionHandler(handler ConnectionHandler)
	IsConnected() bool
	Disconnect()
}

// Config represents broker client configuration shared by all transports
type Config struct {
	Transport             string `toml:"transport"`
	Server                string `toml:"server"`
	ClientID              string `toml:"client_id"`
	Username              string `toml:"username,omitempty"`
	Password              string `toml:"password,omitempty"`
	DB                    int    `toml:"db,omitempty"`
	QoS                   byte   `toml:"qos,omitempty"`
	Retained              bool   `toml:"retained,omitempty"`
	CleanSession          bool   `toml:"clean_session"`
	ConnectRetry          bool   `toml:"connect_retry"`
	ConnectTimeout        string `toml:"connect_timeout,omitempty"`
	TLSCertFile           string `toml:"tls_cert_file,omitempty"`
	TLSKeyFile            string `toml:"tls_key_file,omitempty"`
	TLSCAFile             string `toml:"tls_ca_file,omitempty"`
	TLSInsecureSkipVerify bool   `toml:"tls_insecure_skip_verify,omitempty"`
}

// Timeout returns the parsed connect timeout or the default
func (c Config) Timeout() (time.Duration, error) {
	if c.ConnectTimeout == "" {
		return DefaultConnectTimeout, nil
	}
	d, err := time.ParseDuration(c.ConnectTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid connect_timeout %q: %w", c.ConnectTimeout, err)
	}
	if d <= 0 {
		return DefaultConnectTimeout, nil
	}
	return d, nil
}

// Validate checks the fields shared by every transport
func (c Config) Validate() error {
	if c.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", c.QoS)
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	return ValidateTLS(c)
}
