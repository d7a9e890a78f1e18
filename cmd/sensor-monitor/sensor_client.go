package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rawrobot/sensor-publisher/internal/broker"
	"github.com/rawrobot/sensor-publisher/internal/metrics"
	"github.com/rawrobot/sensor-publisher/internal/transport"
)

// SensorClient subscribes one connection's channels and feeds the UI
type SensorClient struct {
	config     ConnectionConfig
	client     broker.Client
	dispatcher *broker.Dispatcher
	messagesCh chan MonitorMessage
	errorsCh   chan error
	name       string
	ctx        context.Context
	topicDepth int
	logger     zerolog.Logger
	color      string
	metrics    *metrics.Metrics
}

func NewSensorClient(config ConnectionConfig, open transport.Opener, messagesCh chan MonitorMessage, errorsCh chan error, topicDepth int) (*SensorClient, error) {
	logger := log.With().
		Str("component", "sensor-client").
		Str("connection", config.Name).
		Logger()

	client, err := open(config.BrokerConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("connection %s: %w", config.Name, err)
	}

	return &SensorClient{
		config:     config,
		client:     client,
		dispatcher: broker.NewDispatcher(logger),
		messagesCh: messagesCh,
		errorsCh:   errorsCh,
		name:       config.Name,
		ctx:        context.Background(),
		topicDepth: topicDepth,
		logger:     logger,
	}, nil
}

func (c *SensorClient) SetContext(ctx context.Context) {
	c.ctx = ctx
}

func (c *SensorClient) SetColor(color string) {
	c.color = color
}

func (c *SensorClient) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

func (c *SensorClient) Connect() error {
	for _, channel := range c.config.Channels {
		c.dispatcher.Handle(channel, c.handleReading)
	}
	c.dispatcher.SetFallback(c.handleRaw)
	c.client.SetMessageHandler(c.dispatcher.Dispatch)

	c.client.SetConnectionHandler(func(connected bool, err error) {
		var statusErr error
		if connected {
			statusErr = fmt.Errorf("%s: connected", c.name)
		} else if err != nil {
			statusErr = fmt.Errorf("%s: connection error: %w", c.name, err)
		} else {
			statusErr = fmt.Errorf("%s: disconnected", c.name)
		}
		c.safeErrorSend(statusErr)
	})

	if err := c.client.Connect(c.ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.logger.Info().Strs("channels", c.config.Channels).Msg("Subscribing to channels")
	if err := c.client.Subscribe(c.ctx, c.config.Channels...); err != nil {
		c.logger.Error().Err(err).Msg("Failed to subscribe to channels")
		return fmt.Errorf("subscription error: %w", err)
	}

	c.safeErrorSend(fmt.Errorf("%s: subscribed to %d channels", c.name, len(c.config.Channels)))
	return nil
}

func (c *SensorClient) handleReading(msg broker.Message) {
	message := NewReadingMessage(msg, c.name, c.topicDepth, c.color)
	if c.metrics != nil {
		if message.Reading != nil {
			c.metrics.ObserveReading(c.name, msg.Channel, message.Reading.Units, message.Reading.Value)
		} else {
			c.metrics.ObserveDecodeError(c.name, msg.Channel)
		}
	}
	if message.DecodeErr != nil {
		c.logger.Warn().Err(message.DecodeErr).Str("channel", msg.Channel).Msg("Undecodable reading")
	}
	c.deliver(message)
}

func (c *SensorClient) handleRaw(msg broker.Message) {
	c.deliver(NewMonitorMessage(msg, c.name, c.topicDepth, c.color))
}

func (c *SensorClient) deliver(message MonitorMessage) {
	select {
	case c.messagesCh <- message:
	case <-c.ctx.Done():
	default:
		// Channel is full, drop the message to prevent blocking
		c.logger.Warn().Msg("Message channel full, dropping message")
	}
}

// safeErrorSend sends to the error channel without blocking
func (c *SensorClient) safeErrorSend(err error) {
	select {
	case c.errorsCh <- err:
	case <-c.ctx.Done():
	default:
	}
}

func (c *SensorClient) Disconnect() {
	defer func() {
		if r := recover(); r != nil {
			c.safeErrorSend(fmt.Errorf("[%s] disconnect panic: %v", c.name, r))
		}
	}()

	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect()
	}
}
