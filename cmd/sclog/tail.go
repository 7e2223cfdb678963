package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blightveil/sclog/internal/config"
	"github.com/blightveil/sclog/pkg/sclog"
)

var (
	// tail flags
	tailLogFile      string
	format           string
	tailIncludeTypes []string
	tailExcludeTypes []string
	includeRaw       bool
	includeUnmatched bool
	zonesURL         string
	requireZones     bool
	pollFS           bool
	discordEnabled   bool
	feedAddr         string
	otelEndpoint     string
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Monitor Game.log and output events",
	Long: `Monitor the Star Citizen Game.log in real-time and output classified events.

Only lines appended after startup are processed. Events are output as
JSON Lines when stdout is not a terminal and as colored text otherwise.

Examples:
  # Monitor with default settings (auto-detect Game.log from the game process)
  sclog tail

  # Specify the log file
  sclog tail --log-file "C:\Program Files\Roberts Space Industries\StarCitizen\LIVE\Game.log"

  # Resolve zone codes to display names
  sclog tail --zones-url https://example.com/zones.yaml

  # Output only kills and contested zone traffic
  sclog tail --include-types actor_death,zone_alert

  # Serve events to a map overlay on ws://127.0.0.1:8787/ws
  sclog tail --feed-addr 127.0.0.1:8787

  # Pipe to jq for filtering
  sclog tail --format jsonl | jq 'select(.type == "zone_alert")'`,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().StringVarP(&tailLogFile, "log-file", "l", "",
		"Game.log path (auto-detected if not specified)")
	tailCmd.Flags().StringVarP(&format, "format", "f", "",
		"Output format: jsonl, pretty (default pretty on a terminal, else jsonl)")
	tailCmd.Flags().StringSliceVar(&tailIncludeTypes, "include-types", nil,
		"Event types to include (comma-separated)")
	tailCmd.Flags().StringSliceVar(&tailExcludeTypes, "exclude-types", nil,
		"Event types to exclude (comma-separated)")
	tailCmd.Flags().BoolVar(&includeRaw, "raw", false,
		"Include raw log lines in output")
	tailCmd.Flags().BoolVar(&includeUnmatched, "unmatched", false,
		"Also output lines that match no rule")
	tailCmd.Flags().StringVar(&zonesURL, "zones-url", "",
		"URL of the zone name mapping (YAML or JSON)")
	tailCmd.Flags().BoolVar(&requireZones, "require-zones", false,
		"Fail to start if the zone mapping cannot be fetched")
	tailCmd.Flags().BoolVar(&pollFS, "poll", false,
		"Poll the file for changes instead of using filesystem notifications")
	tailCmd.Flags().BoolVar(&discordEnabled, "discord", false,
		"Post events to Discord ("+config.EnvDiscordToken+" and "+config.EnvDiscordChannel+" required)")
	tailCmd.Flags().StringVar(&feedAddr, "feed-addr", "",
		"Serve a WebSocket event feed on this address")
	tailCmd.Flags().StringVar(&otelEndpoint, "otel-endpoint", "",
		"Export events to this OTLP gRPC collector (host:port)")

	// Register completion for event type flags
	registerEventTypeCompletion(tailCmd, "include-types")
	registerEventTypeCompletion(tailCmd, "exclude-types")
	registerFormatCompletion(tailCmd)
}

// applyTailFlags layers the tail flags over the loaded configuration.
func applyTailFlags(cfg *config.Config) {
	if tailLogFile != "" {
		cfg.LogFile = tailLogFile
	}
	if includeRaw {
		cfg.Events.IncludeRawLine = true
	}
	if includeUnmatched {
		cfg.Events.IncludeUnmatched = true
	}
	if zonesURL != "" {
		cfg.Zones.URL = zonesURL
	}
	if requireZones {
		cfg.Zones.Required = true
	}
	if pollFS {
		cfg.Tail.Poll = true
	}
	if discordEnabled {
		cfg.Discord.Enabled = true
	}
	if feedAddr != "" {
		cfg.Feed.Enabled = true
		cfg.Feed.Addr = feedAddr
	}
	if otelEndpoint != "" {
		cfg.OTel.Endpoint = otelEndpoint
	}
}

func runTail(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyTailFlags(&cfg)

	// Normalize and validate event types
	includes, excludes, err := resolveEventTypes(tailIncludeTypes, tailExcludeTypes, cfg.Events.Include, cfg.Events.Exclude)
	if err != nil {
		return err
	}
	outFormat, err := resolveFormat(format, cfg.Format, os.Stdout)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}

	// Setup context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := sclog.NewDispatcher(
		sclog.WithBufferSize(cfg.Dispatch.BufferSize),
		sclog.WithDropOnFull(cfg.Dispatch.DropOnFull),
		sclog.WithDispatchLogger(logger),
	)
	dispatcher.Register(writerConsumer(outFormat, os.Stdout))

	shutdownSinks, err := registerSinks(ctx, cfg, dispatcher, logger)
	if err != nil {
		dispatcher.Close()
		return err
	}

	monitor := sclog.NewMonitor(monitorOptions(cfg, includes, excludes, dispatcher, logger)...)

	session, err := monitor.Start(ctx, cfg.LogFile)
	if err != nil {
		shutdown(logger, monitor, dispatcher, shutdownSinks)
		return err
	}

	select {
	case <-ctx.Done():
	case <-session.Done():
	}
	sessionErr := session.Err()
	shutdown(logger, monitor, dispatcher, shutdownSinks)

	if sessionErr != nil && ctx.Err() == nil {
		return fmt.Errorf("monitoring ended: %w", sessionErr)
	}
	return nil
}

func monitorOptions(cfg config.Config, includes, excludes []sclog.EventType, d *sclog.Dispatcher, logger *slog.Logger) []sclog.Option {
	return []sclog.Option{
		sclog.WithDispatcher(d),
		sclog.WithLogger(logger),
		sclog.WithZoneURL(cfg.Zones.URL),
		sclog.WithZoneTimeout(cfg.Zones.Timeout.Std()),
		sclog.WithRequireZoneMapping(cfg.Zones.Required),
		sclog.WithPolicy(cfg.ParserPolicy()),
		sclog.WithFilter(includes, excludes),
		sclog.WithIncludeRawLine(cfg.Events.IncludeRawLine),
		sclog.WithIncludeUnmatched(cfg.Events.IncludeUnmatched),
		sclog.WithPoll(cfg.Tail.Poll),
		sclog.WithPollBackoff(cfg.Tail.PollBackoff.Std()),
	}
}

// shutdown stops the session first so that everything it published is
// drained to the sinks before they are torn down.
func shutdown(logger *slog.Logger, m *sclog.Monitor, d *sclog.Dispatcher, sinks func() error) {
	err := errors.Join(m.Close(), d.Close(), sinks())
	if err != nil {
		logger.Warn("shutdown", "error", err)
	}
}
