package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawrobot/sensor-publisher/internal/broker"
	"github.com/rawrobot/sensor-publisher/internal/reading"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient implements the paho client methods the wrapper uses
type fakeClient struct {
	mqtt.Client
	opts       *mqtt.ClientOptions
	connectErr error
	publishTok mqtt.Token
	connected  bool

	mu         sync.Mutex
	published  []published
	subscribed map[string]mqtt.MessageHandler
	quiesce    uint
}

func (f *fakeClient) Connect() mqtt.Token {
	if f.connectErr != nil {
		return completedToken(f.connectErr)
	}
	f.connected = true
	if f.opts.OnConnect != nil {
		f.opts.OnConnect(f)
	}
	return completedToken(nil)
}

func (f *fakeClient) IsConnected() bool { return f.connected }

func (f *fakeClient) Disconnect(quiesce uint) {
	f.connected = false
	f.quiesce = quiesce
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	f.published = append(f.published, published{topic, qos, retained, payload.([]byte)})
	f.mu.Unlock()
	if f.publishTok != nil {
		return f.publishTok
	}
	return completedToken(nil)
}

func (f *fakeClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribed == nil {
		f.subscribed = make(map[string]mqtt.MessageHandler)
	}
	f.subscribed[topic] = callback
	return completedToken(nil)
}

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }
func (m fakeMessage) Qos() byte { return 1 }
func (m fakeMessage) Retained() bool { return false }

func newTestClient(cfg broker.Config, fake *fakeClient) *Client {
	c := NewClient(cfg, zerolog.Nop())
	c.newClient = func(opts *mqtt.ClientOptions) mqtt.Client {
		fake.opts = opts
		return fake
	}
	return c
}

func TestPublishSendsOnceWithoutRetention(t *testing.T) {
	fake := &fakeClient{}
	c := newTestClient(broker.Config{ClientID: "battery-publisher"}, fake)
	require.NoError(t, c.Connect(context.Background()))

	payload, err := reading.BatteryLevel().Encode()
	require.NoError(t, err)
	require.NoError(t, c.Publish(context.Background(), reading.BatteryLevelChannel, payload))

	require.Len(t, fake.published, 1)
	assert.Equal(t, reading.BatteryLevelChannel, fake.published[0].topic)
	assert.Equal(t, byte(0), fake.published[0].qos)
	assert.False(t, fake.published[0].retained)
	assert.JSONEq(t, `{"value":60.1,"units":"%"}`, string(fake.published[0].payload))
}

func TestConnectOptions(t *testing.T) {
	fake := &fakeClient{}
	c := newTestClient(broker.Config{ClientID: "probe", Username: "u", Password: "p"}, fake)
	require.NoError(t, c.Connect(context.Background()))

	require.Len(t, fake.opts.Servers, 1)
	assert.Equal(t, "tcp://localhost:1883", fake.opts.Servers[0].String())
	assert.Equal(t, "probe", fake.opts.ClientID)
	assert.Equal(t, "u", fake.opts.Username)
	assert.False(t, fake.opts.ConnectRetry)
	assert.Equal(t, broker.DefaultConnectTimeout, fake.opts.ConnectTimeout)
}

func TestConnectFailure(t *testing.T) {
	fake := &fakeClient{connectErr: errors.New("connection refused")}
	c := newTestClient(broker.Config{}, fake)

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, c.IsConnected())
}

func TestPublishRequiresConnection(t *testing.T) {
	c := NewClient(broker.Config{}, zerolog.Nop())
	err := c.Publish(context.Background(), "a/b", []byte("x"))
	assert.ErrorIs(t, err, broker.ErrNotConnected)
	assert.ErrorIs(t, c.Subscribe(context.Background(), "a/b"), broker.ErrNotConnected)
}

func TestPublishHonoursContext(t *testing.T) {
	fake := &fakeClient{publishTok: pendingToken()}
	c := newTestClient(broker.Config{}, fake)
	require.NoError(t, c.Connect(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Publish(ctx, "a/b", []byte("x"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscribeForwardsMessages(t *testing.T) {
	fake := &fakeClient{}
	c := newTestClient(broker.Config{QoS: 1}, fake)

	var got []broker.Message
	c.SetMessageHandler(func(msg broker.Message) { got = append(got, msg) })

	var events []bool
	c.SetConnectionHandler(func(connected bool, err error) { events = append(events, connected) })

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Subscribe(context.Background(), reading.BatteryLevelChannel))
	assert.Equal(t, []bool{true}, events)

	handler := fake.subscribed[reading.BatteryLevelChannel]
	require.NotNil(t, handler)
	handler(fake, fakeMessage{topic: reading.BatteryLevelChannel, payload: []byte(`{"value":60.1,"units":"%"}`)})

	require.Len(t, got, 1)
	assert.Equal(t, reading.BatteryLevelChannel, got[0].Channel)
	assert.Equal(t, byte(1), got[0].QoS)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestResubscribeOnReconnect(t *testing.T) {
	fake := &fakeClient{}
	c := newTestClient(broker.Config{}, fake)
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Subscribe(context.Background(), "a/b"))

	fake.subscribed = nil
	fake.opts.OnConnect(fake)
	assert.Contains(t, fake.subscribed, "a/b")
}

func TestDisconnect(t *testing.T) {
	fake := &fakeClient{}
	c := newTestClient(broker.Config{}, fake)
	require.NoError(t, c.Connect(context.Background()))

	c.Disconnect()
	assert.False(t, c.IsConnected())
	assert.Equal(t, uint(250), fake.quiesce)
}
