package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/rawrobot/sensor-publisher/internal/broker"
)

// DefaultServer is used when the configuration names no broker
const DefaultServer = "tcp://localhost:1883"

// Client represents a universal MQTT client
type Client struct {
	config            broker.Config
	client            mqtt.Client
	newClient         func(*mqtt.ClientOptions) mqtt.Client
	logger            zerolog.Logger
	mu                sync.Mutex
	messageHandler    broker.MessageHandler
	connectionHandler broker.ConnectionHandler
	topics            []string
}

var _ broker.Client = (*Client)(nil)

// NewClient creates a new universal MQTT client
func NewClient(config broker.Config, logger zerolog.Logger) *Client {
	if config.Server == "" {
		config.Server = DefaultServer
	}
	return &Client{
		config:    config,
		newClient: mqtt.NewClient,
		logger:    logger,
	}
}

// SetMessageHandler sets the message handler function
func (c *Client) SetMessageHandler(handler broker.MessageHandler) {
	c.messageHandler = handler
}

// SetConnectionHandler sets the connection handler function
func (c *Client) SetConnectionHandler(handler broker.ConnectionHandler) {
	c.connectionHandler = handler
}

func (c *Client) options() (*mqtt.ClientOptions, error) {
	timeout, err := c.config.Timeout()
	if err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Server)
	opts.SetClientID(c.config.ClientID)
	opts.SetCleanSession(c.config.CleanSession)
	opts.SetConnectTimeout(timeout)
	opts.SetAutoReconnect(c.config.ConnectRetry)
	// A retrying connect never fails, so one-shot publishers must leave it off
	opts.SetConnectRetry(c.config.ConnectRetry)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		if c.config.Password != "" {
			opts.SetPassword(c.config.Password)
		}
	}

	tlsConfig, err := broker.TLSConfig(c.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS config: %w", err)
	}
	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		c.logger.Warn().Err(err).Msg("MQTT connection lost")
		if c.connectionHandler != nil {
			c.connectionHandler(false, err)
		}
	})

	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		c.logger.Info().Msg("MQTT reconnecting")
		if c.connectionHandler != nil {
			c.connectionHandler(false, fmt.Errorf("reconnecting"))
		}
	})

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		c.logger.Info().Msg("MQTT connected")
		if c.connectionHandler != nil {
			c.connectionHandler(true, nil)
		}

		// Re-subscribe to all topics on reconnect
		for _, topic := range c.subscribedTopics() {
			if err := c.subscribeToTopic(context.Background(), topic); err != nil {
				c.logger.Error().Err(err).Str("topic", topic).Msg("Failed to re-subscribe")
			}
		}
	})

	return opts, nil
}

// Connect establishes connection to the MQTT broker
func (c *Client) Connect(ctx context.Context) error {
	opts, err := c.options()
	if err != nil {
		return err
	}

	c.client = c.newClient(opts)

	c.logger.Info().
		Str("broker", c.config.Server).
		Str("client_id", c.config.ClientID).
		Msg("Connecting to MQTT broker")

	if err := waitToken(ctx, c.client.Connect()); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return nil
}

// Subscribe subscribes to one or more topics
func (c *Client) Subscribe(ctx context.Context, topics ...string) error {
	if !c.IsConnected() {
		return broker.ErrNotConnected
	}

	for _, topic := range topics {
		if err := c.subscribeToTopic(ctx, topic); err != nil {
			return err
		}
		c.mu.Lock()
		c.topics = append(c.topics, topic)
		c.mu.Unlock()
	}

	return nil
}

func (c *Client) subscribedTopics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.topics...)
}

// subscribeToTopic subscribes to a single topic
func (c *Client) subscribeToTopic(ctx context.Context, topic string) error {
	c.logger.Info().Str("topic", topic).Uint8("qos", c.config.QoS).Msg("Subscribing to topic")

	if err := waitToken(ctx, c.client.Subscribe(topic, c.config.QoS, c.internalMessageHandler)); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	c.logger.Info().Str("topic", topic).Msg("Successfully subscribed to topic")
	return nil
}

// internalMessageHandler handles incoming MQTT messages
func (c *Client) internalMessageHandler(client mqtt.Client, msg mqtt.Message) {
	message := broker.Message{
		Channel:   msg.Topic(),
		Payload:   msg.Payload(),
		QoS:       msg.Qos(),
		Retained:  msg.Retained(),
		Timestamp: time.Now(),
	}

	if c.messageHandler != nil {
		c.messageHandler(message)
	}
}

// Publish publishes a message to a topic with the configured QoS and retain flag
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if !c.IsConnected() {
		return broker.ErrNotConnected
	}

	token := c.client.Publish(topic, c.config.QoS, c.config.Retained, payload)
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}

	c.logger.Debug().
		Str("topic", topic).
		Int("bytes", len(payload)).
		Msg("Published message")
	return nil
}

// IsConnected returns true if the client is connected
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Disconnect disconnects from the MQTT broker
func (c *Client) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.logger.Info().Msg("Disconnecting from MQTT broker")
		c.client.Disconnect(250)
	}
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
