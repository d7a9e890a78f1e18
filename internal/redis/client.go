package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rawrobot/sensor-publisher/internal/broker"
)

// Client publishes and subscribes over Redis pub/sub.
// An empty server leaves the address to the go-redis default (localhost:6379).
type Client struct {
	config            broker.Config
	rdb               *goredis.Client
	pubsub            *goredis.PubSub
	logger            zerolog.Logger
	mu                sync.Mutex
	connected         bool
	messageHandler    broker.MessageHandler
	connectionHandler broker.ConnectionHandler
	done              chan struct{}
}

var _ broker.Client = (*Client)(nil)

func NewClient(config broker.Config, logger zerolog.Logger) *Client {
	return &Client{
		config: config,
		logger: logger,
	}
}

func (c *Client) SetMessageHandler(handler broker.MessageHandler) {
	c.messageHandler = handler
}

func (c *Client) SetConnectionHandler(handler broker.ConnectionHandler) {
	c.connectionHandler = handler
}

func (c *Client) options() (*goredis.Options, error) {
	var opts *goredis.Options
	if strings.HasPrefix(c.config.Server, "redis://") || strings.HasPrefix(c.config.Server, "rediss://") {
		parsed, err := goredis.ParseURL(c.config.Server)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &goredis.Options{Addr: c.config.Server, DB: c.config.DB}
	}

	timeout, err := c.config.Timeout()
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = timeout
	opts.ClientName = c.config.ClientID
	// RESP2 pub/sub works against servers without HELLO
	if opts.Protocol == 0 {
		opts.Protocol = 2
	}

	if c.config.Username != "" {
		opts.Username = c.config.Username
	}
	if c.config.Password != "" {
		opts.Password = c.config.Password
	}

	tlsConfig, err := broker.TLSConfig(c.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS config: %w", err)
	}
	if tlsConfig != nil {
		opts.TLSConfig = tlsConfig
	}

	return opts, nil
}

// Connect creates the client and checks the server answers
func (c *Client) Connect(ctx context.Context) error {
	opts, err := c.options()
	if err != nil {
		return err
	}

	c.rdb = goredis.NewClient(opts)

	c.logger.Info().
		Str("addr", c.rdb.Options().Addr).
		Str("client_name", opts.ClientName).
		Msg("Connecting to Redis")

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		_ = c.rdb.Close()
		c.rdb = nil
		if c.connectionHandler != nil {
			c.connectionHandler(false, err)
		}
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.logger.Info().Msg("Redis connected")
	if c.connectionHandler != nil {
		c.connectionHandler(true, nil)
	}
	return nil
}

// Publish sends payload to channel
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	_, err := c.PublishCount(ctx, channel, payload)
	return err
}

// PublishCount sends payload to channel and reports how many subscribers got it.
// Zero means the message was dropped.
func (c *Client) PublishCount(ctx context.Context, channel string, payload []byte) (int64, error) {
	if !c.IsConnected() {
		return 0, broker.ErrNotConnected
	}

	receivers, err := c.rdb.Publish(ctx, channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish to channel %s: %w", channel, err)
	}

	c.logger.Debug().
		Str("channel", channel).
		Int("bytes", len(payload)).
		Int64("receivers", receivers).
		Msg("Published message")
	return receivers, nil
}

// Subscribe subscribes to channels and forwards their messages to the message handler
func (c *Client) Subscribe(ctx context.Context, channels ...string) error {
	if !c.IsConnected() {
		return broker.ErrNotConnected
	}
	if len(channels) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, channel := range channels {
		c.logger.Info().Str("channel", channel).Msg("Subscribing to channel")
	}

	if c.pubsub != nil {
		if err := c.pubsub.Subscribe(ctx, channels...); err != nil {
			return fmt.Errorf("failed to subscribe to %v: %w", channels, err)
		}
		return nil
	}

	pubsub := c.rdb.Subscribe(ctx, channels...)
	// Wait for the confirmation so publishes after this call are seen
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %v: %w", channels, err)
	}

	c.pubsub = pubsub
	c.done = make(chan struct{})
	go c.receive(pubsub.Channel(), c.done)

	c.logger.Info().Strs("channels", channels).Msg("Successfully subscribed to channels")
	return nil
}

func (c *Client) receive(ch <-chan *goredis.Message, done chan struct{}) {
	defer close(done)
	for msg := range ch {
		if c.messageHandler == nil {
			continue
		}
		c.messageHandler(broker.Message{
			Channel:   msg.Channel,
			Payload:   []byte(msg.Payload),
			Timestamp: time.Now(),
		})
	}
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Disconnect closes the subscription and the client
func (c *Client) Disconnect() {
	c.mu.Lock()
	pubsub, done, rdb := c.pubsub, c.done, c.rdb
	wasConnected := c.connected
	c.pubsub, c.done, c.rdb = nil, nil, nil
	c.connected = false
	c.mu.Unlock()

	if !wasConnected {
		return
	}

	c.logger.Info().Msg("Disconnecting from Redis")
	if pubsub != nil {
		if err := pubsub.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to close subscription")
		}
		<-done
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
	if c.connectionHandler != nil {
		c.connectionHandler(false, nil)
	}
}
