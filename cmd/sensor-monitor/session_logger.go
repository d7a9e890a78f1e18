package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SessionLogger records received messages as JSON lines, starting a new
// file once the current one is older than maxDuration
type SessionLogger struct {
	outputDir   string
	file        *os.File
	entries     zerolog.Logger
	maxDuration time.Duration
	startTime   time.Time
	now         func() time.Time
	logger      zerolog.Logger
	mu          sync.Mutex
	closed      bool
}

func NewSessionLogger(outputDir string, maxDuration time.Duration, logger zerolog.Logger) (*SessionLogger, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log output directory: %w", err)
	}

	sl := &SessionLogger{
		outputDir:   outputDir,
		maxDuration: maxDuration,
		now:         time.Now,
		logger:      logger,
	}

	if err := sl.rotateFile(); err != nil {
		return nil, err
	}

	return sl, nil
}

func (sl *SessionLogger) rotateFile() error {
	if sl.file != nil {
		sl.file.Close()
	}

	sl.startTime = sl.now()
	path := filepath.Join(sl.outputDir, sl.generateFilename())

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create session log file: %w", err)
	}

	sl.file = file
	sl.entries = zerolog.New(file).With().Timestamp().Logger()
	sl.logger.Info().Str("file", path).Msg("Created new session log file")

	return nil
}

func (sl *SessionLogger) generateFilename() string {
	return fmt.Sprintf("sensor_monitor_%s.log", sl.startTime.Format("20060102_150405"))
}

// Log appends one message to the session file
func (sl *SessionLogger) Log(msg MonitorMessage) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.closed {
		return fmt.Errorf("session logger has been closed")
	}

	if sl.now().Sub(sl.startTime) > sl.maxDuration {
		if err := sl.rotateFile(); err != nil {
			return err
		}
	}

	event := sl.entries.Log().
		Str("source", msg.Source).
		Str("channel", msg.Channel).
		Time("received", msg.Timestamp)
	switch {
	case msg.Reading != nil:
		event = event.Float64("value", msg.Reading.Value).Str("units", msg.Reading.Units)
	case msg.DecodeErr != nil:
		event = event.Str("payload", msg.Payload).Str("error", msg.DecodeErr.Error())
	default:
		event = event.Str("payload", msg.Payload)
	}
	event.Send()
	return nil
}

// LogEvent appends a connection event to the session file
func (sl *SessionLogger) LogEvent(err error) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.closed {
		return fmt.Errorf("session logger has been closed")
	}
	sl.entries.Log().Str("event", err.Error()).Send()
	return nil
}

func (sl *SessionLogger) Close() error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.closed {
		return nil
	}

	sl.closed = true
	if sl.file != nil {
		return sl.file.Close()
	}
	return nil
}
