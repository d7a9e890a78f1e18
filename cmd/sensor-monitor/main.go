package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rawrobot/sensor-publisher/internal/logging"
	"github.com/rawrobot/sensor-publisher/internal/metrics"
	"github.com/rawrobot/sensor-publisher/internal/transport"
)

var (
	gitHash   string
	buildDate string
)

var colors = []string{"green", "blue", "yellow", "magenta", "cyan", "white", "orange", "purple", "brown", "red"}

func main() {
	logging.Bootstrap()

	config := loadConfiguration()
	if config == nil {
		os.Exit(1)
	}

	// The TUI owns the terminal from here on
	logging.Configure(config.Logging, os.Stderr)
	logging.Discard()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionLogger := initializeSessionLogger(config)
	if sessionLogger != nil {
		defer sessionLogger.Close()
	}

	var m *metrics.Metrics
	if config.Metrics.Listen != "" {
		m = metrics.New()
		srv := startMetricsServer(config.Metrics.Listen, m)
		defer shutdownMetricsServer(srv)
	}

	ui := NewUI(config.Display.Truncate)
	messagesCh, errorsCh := make(chan MonitorMessage, 1000), make(chan error, 100)
	clients, err := createSensorClients(ctx, config, transport.Open, messagesCh, errorsCh, m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	sigCh := setupSignalHandler()
	uiDone := startUI(ui, ctx)

	connectClients(ctx, clients, errorsCh)

	handlerDone := handleMessagesAndErrors(ctx, ui, messagesCh, errorsCh, len(clients), sessionLogger)

	reason := waitForShutdownSignal(sigCh, uiDone)
	if sessionLogger != nil {
		_ = sessionLogger.LogEvent(errors.New(reason))
	}
	cancel()
	ui.Stop()
	disconnectClients(clients)
	waitForMessageHandler(handlerDone)
}

func loadConfiguration() *Config {
	configFile := flag.String("config", "config.toml", "Path to configuration file")
	versionFlag := flag.Bool("version", false, "Display version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nBuild Information:\n")
		fmt.Fprintf(os.Stderr, "  Build Date: %s\n", buildDate)
		fmt.Fprintf(os.Stderr, "  Git Hash: %s\n", gitHash)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("Build Date: %s\nGit Hash: %s\n", buildDate, gitHash)
		os.Exit(0)
	}

	config, err := LoadConfig(*configFile)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return nil
	}

	if len(config.Connections) == 0 {
		log.Error().Msg("No connections configured")
		return nil
	}

	return config
}

func initializeSessionLogger(config *Config) *SessionLogger {
	if !config.Logging.EnableSessionLog {
		return nil
	}

	// Validated by LoadConfig
	maxDuration, _ := time.ParseDuration(config.Logging.SessionLogMaxDuration)

	sessionLogger, err := NewSessionLogger(config.Logging.OutputDir, maxDuration, log.Logger)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize session logger")
		return nil
	}

	return sessionLogger
}

func startMetricsServer(addr string, m *metrics.Metrics) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()
	return srv
}

func shutdownMetricsServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Metrics server shutdown")
	}
}

func createSensorClients(ctx context.Context, config *Config, open transport.Opener, messagesCh chan MonitorMessage, errorsCh chan error, m *metrics.Metrics) ([]*SensorClient, error) {
	var clients []*SensorClient
	for i, connConfig := range config.Connections {
		client, err := NewSensorClient(connConfig, open, messagesCh, errorsCh, config.Display.TopicDepth)
		if err != nil {
			return nil, err
		}
		client.SetContext(ctx)
		client.SetColor(colors[i%len(colors)])
		client.SetMetrics(m)
		clients = append(clients, client)
	}
	return clients, nil
}

func setupSignalHandler() chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}

func startUI(ui *UI, ctx context.Context) chan error {
	uiDone := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				uiDone <- fmt.Errorf("UI panic: %v", r)
			}
		}()
		uiDone <- ui.Start(ctx)
	}()
	time.Sleep(100 * time.Millisecond) // Give UI time to initialize
	return uiDone
}

func connectClients(ctx context.Context, clients []*SensorClient, errorsCh chan error) {
	for _, client := range clients {
		go func(c *SensorClient) {
			if err := c.Connect(); err != nil {
				select {
				case errorsCh <- fmt.Errorf("failed to connect %s: %w", c.name, err):
				case <-ctx.Done():
				}
			}
		}(client)
	}
}

func handleMessagesAndErrors(ctx context.Context, ui *UI, messagesCh chan MonitorMessage, errorsCh chan error, clientCount int, sessionLogger *SessionLogger) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		var stats monitorStats

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-messagesCh:
				stats.record(msg)
				ui.AddMessage(msg)
				ui.UpdateStatus(stats.status(clientCount))
				if sessionLogger != nil {
					if err := sessionLogger.Log(msg); err != nil {
						log.Error().Err(err).Msg("Failed to write to session log")
					}
				}
			case err := <-errorsCh:
				ui.AddError(err)
				if sessionLogger != nil {
					if logErr := sessionLogger.LogEvent(err); logErr != nil {
						log.Error().Err(logErr).Msg("Failed to write event to session log")
					}
				}
			}
		}
	}()
	return done
}

// monitorStats is only touched by the message handling goroutine
type monitorStats struct {
	messages     int
	readings     int
	decodeErrors int
}

func (s *monitorStats) record(msg MonitorMessage) {
	s.messages++
	if msg.Reading != nil {
		s.readings++
	}
	if msg.DecodeErr != nil {
		s.decodeErrors++
	}
}

func (s monitorStats) status(clientCount int) string {
	return fmt.Sprintf("Messages: %d | Readings: %d | Decode errors: %d | Connections: %d",
		s.messages, s.readings, s.decodeErrors, clientCount)
}

func waitForShutdownSignal(sigCh chan os.Signal, uiDone chan error) string {
	select {
	case sig := <-sigCh:
		return fmt.Sprintf("Received signal: %v", sig)
	case err := <-uiDone:
		if err != nil {
			return fmt.Sprintf("UI error: %v", err)
		}
		return "UI exited normally"
	}
}

func disconnectClients(clients []*SensorClient) {
	disconnectDone := make(chan struct{})
	go func() {
		defer close(disconnectDone)
		var wg sync.WaitGroup
		for _, client := range clients {
			wg.Add(1)
			go func(c *SensorClient) {
				defer wg.Done()
				c.Disconnect()
			}(client)
		}
		wg.Wait()
	}()

	select {
	case <-disconnectDone:
	case <-time.After(2 * time.Second):
	}
}

func waitForMessageHandler(done chan struct{}) {
	select {
	case <-done:
	case <-time.After(1 * time.Second):
	}
}
