package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rawrobot/sensor-publisher/internal/broker"
	"github.com/rawrobot/sensor-publisher/internal/logging"
	"github.com/rawrobot/sensor-publisher/internal/reading"
	"github.com/rawrobot/sensor-publisher/internal/transport"
)

var (
	gitHash   string
	buildDate string
)

func main() {
	logging.Bootstrap()

	config := loadConfiguration()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, transport.Open, log.Logger); err != nil {
		stop()
		log.Fatal().Err(err).Msg("Failed to publish reading")
	}
}

func loadConfiguration() *Config {
	configFile := flag.String("config", "", "Path to optional configuration file")
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
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Configure(config.Logging, os.Stderr)
	return config
}

// run connects, publishes the configured reading once and disconnects
func run(ctx context.Context, config *Config, open transport.Opener, logger zerolog.Logger) error {
	client, err := open(config.Broker, logger)
	if err != nil {
		return fmt.Errorf("failed to create broker client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Disconnect()

	return publishReading(ctx, client, config.Reading.Channel(), config.Reading.Reading(), logger)
}

func publishReading(ctx context.Context, pub broker.Client, channel string, r reading.Reading, logger zerolog.Logger) error {
	payload, err := r.Encode()
	if err != nil {
		return err
	}

	if err := pub.Publish(ctx, channel, payload); err != nil {
		return err
	}

	logger.Info().
		Str("channel", channel).
		RawJSON("payload", payload).
		Msg("Published reading")
	return nil
}
