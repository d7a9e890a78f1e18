package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config is the [logging] section shared by the commands
type Config struct {
	Level                 string `toml:"level"`
	Pretty                bool   `toml:"pretty"`
	OutputDir             string `toml:"output_dir"`
	EnableSessionLog      bool   `toml:"enable_session_log"`
	SessionLogMaxDuration string `toml:"session_log_max_duration"`
}

// ParseLevel maps a level name to zerolog, falling back to info
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds a logger writing to w
func New(cfg Config, w io.Writer) zerolog.Logger {
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

// Configure installs the global logger and level
func Configure(cfg Config, w io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	log.Logger = New(cfg, w)
}

// Bootstrap is the logger used before configuration is loaded
func Bootstrap() {
	Configure(Config{Level: "info", Pretty: true}, os.Stderr)
}

// Discard silences console logging, used while the TUI owns the terminal
func Discard() {
	log.Logger = zerolog.New(io.Discard).With().Timestamp().Logger()
}
