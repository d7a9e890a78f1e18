package main

import (
	"time"

	"github.com/rawrobot/sensor-publisher/internal/broker"
	"github.com/rawrobot/sensor-publisher/internal/mqtt"
	"github.com/rawrobot/sensor-publisher/internal/reading"
)

type MonitorMessage struct {
	Channel        string
	DisplayChannel string
	Payload        string
	Source         string
	Reading        *reading.Reading // nil unless the payload decoded
	DecodeErr      error
	Timestamp      time.Time
	QoS            byte
	Retained       bool
	Color          string
}

// NewMonitorMessage creates a display message from a broker message
func NewMonitorMessage(msg broker.Message, source string, topicDepth int, color string) MonitorMessage {
	return MonitorMessage{
		Channel:        msg.Channel,
		DisplayChannel: mqtt.TruncateTopic(msg.Channel, topicDepth),
		Payload:        mqtt.SanitizePayload(msg.Payload),
		Source:         source,
		Timestamp:      msg.Timestamp,
		QoS:            msg.QoS,
		Retained:       msg.Retained,
		Color:          color,
	}
}

// NewReadingMessage also decodes the payload as a reading
func NewReadingMessage(msg broker.Message, source string, topicDepth int, color string) MonitorMessage {
	m := NewMonitorMessage(msg, source, topicDepth, color)
	r, err := reading.Decode(msg.Payload)
	if err != nil {
		m.DecodeErr = err
		return m
	}
	m.Reading = &r
	return m
}

// Key identifies the sensor a message belongs to
func (m MonitorMessage) Key() string {
	return m.Source + "\x00" + m.Channel
}
