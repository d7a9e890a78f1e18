package broker

import (
	"sync"

	"github.com/rs/zerolog"
)

// Dispatcher routes messages to the handler registered for their exact channel
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]MessageHandler
	fallback MessageHandler
	logger   zerolog.Logger
}

func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]MessageHandler),
		logger:   logger,
	}
}

// Handle registers handler for channel, replacing any previous one
func (d *Dispatcher) Handle(channel string, handler MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[channel] = handler
}

// SetFallback sets the handler for channels nobody registered
func (d *Dispatcher) SetFallback(handler MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = handler
}

// Channels returns the registered channel names
func (d *Dispatcher) Channels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	channels := make([]string, 0, len(d.handlers))
	for channel := range d.handlers {
		channels = append(channels, channel)
	}
	return channels
}

// Dispatch is a MessageHandler and can be passed to Client.SetMessageHandler
func (d *Dispatcher) Dispatch(msg Message) {
	d.mu.RLock()
	handler, ok := d.handlers[msg.Channel]
	fallback := d.fallback
	d.mu.RUnlock()

	if ok {
		handler(msg)
		return
	}

	d.logger.Debug().
		Str("channel", msg.Channel).
		Bytes("payload", msg.Payload).
		Msg("Unhandled channel")
	if fallback != nil {
		fallback(msg)
	}
}
