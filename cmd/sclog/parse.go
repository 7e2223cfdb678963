package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blightveil/sclog/internal/logfinder"
	"github.com/blightveil/sclog/internal/zonemap"
	"github.com/blightveil/sclog/pkg/sclog"
)

var (
	// parse flags
	parseIncludeTypes []string
	parseExcludeTypes []string
	parseSince        string
	parseUntil        string
	parseFormat       string
	parseRaw          bool
	parseUnmatched    bool
	parseZonesURL     string
)

var parseCmd = &cobra.Command{
	Use:   "parse [files...]",
	Short: "Parse Game.log files (batch mode)",
	Long: `Parse Game.log files and output events.

Unlike 'tail', this command processes the whole file without following it.
Each file is treated as one game session, so door state starts over at the
top of every file. Without arguments the current Game.log is located the
same way 'tail' does it.

Examples:
  # Parse the current Game.log
  sclog parse

  # Parse archived logs
  sclog parse logbackups/Game-build*.log

  # Filter by time range
  sclog parse --since "2024-05-01T20:00:00Z" --until "2024-05-01T22:00:00Z"

  # Filter by event type
  sclog parse --include-types actor_death,vehicle_destroyed

  # Pipe to jq for filtering
  sclog parse --format jsonl | jq 'select(.killer == "PlayerB")'`,
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringSliceVar(&parseIncludeTypes, "include-types", nil,
		"Event types to include (comma-separated)")
	parseCmd.Flags().StringSliceVar(&parseExcludeTypes, "exclude-types", nil,
		"Event types to exclude (comma-separated)")
	parseCmd.Flags().StringVar(&parseSince, "since", "",
		"Only events at/after timestamp (RFC3339 format, e.g., 2024-01-15T12:00:00Z)")
	parseCmd.Flags().StringVar(&parseUntil, "until", "",
		"Only events before timestamp (RFC3339 format)")
	parseCmd.Flags().StringVarP(&parseFormat, "format", "f", "",
		"Output format: jsonl, pretty (default pretty on a terminal, else jsonl)")
	parseCmd.Flags().BoolVar(&parseRaw, "raw", false,
		"Include raw log lines in output")
	parseCmd.Flags().BoolVar(&parseUnmatched, "unmatched", false,
		"Also output lines that match no rule")
	parseCmd.Flags().StringVar(&parseZonesURL, "zones-url", "",
		"URL of the zone name mapping (YAML or JSON)")

	registerEventTypeCompletion(parseCmd, "include-types")
	registerEventTypeCompletion(parseCmd, "exclude-types")
	registerFormatCompletion(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if parseZonesURL != "" {
		cfg.Zones.URL = parseZonesURL
	}

	// Normalize and validate event types
	includes, excludes, err := resolveEventTypes(parseIncludeTypes, parseExcludeTypes, cfg.Events.Include, cfg.Events.Exclude)
	if err != nil {
		return err
	}
	outFormat, err := resolveFormat(parseFormat, cfg.Format, os.Stdout)
	if err != nil {
		return err
	}

	// Parse time range
	sinceTime, untilTime, err := parseTimeRange(parseSince, parseUntil)
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

	files := args
	if len(files) == 0 {
		path, err := logfinder.FindLogFile(ctx, cfg.LogFile)
		if err != nil {
			return err
		}
		files = []string{path}
	}

	opts := []sclog.ParseOption{
		sclog.WithParsePolicy(cfg.ParserPolicy()),
		sclog.WithParseIncludeRawLine(parseRaw || cfg.Events.IncludeRawLine),
		sclog.WithParseIncludeUnmatched(parseUnmatched || cfg.Events.IncludeUnmatched),
	}
	if len(includes) > 0 {
		opts = append(opts, sclog.WithParseIncludeTypes(includes...))
	}
	if len(excludes) > 0 {
		opts = append(opts, sclog.WithParseExcludeTypes(excludes...))
	}
	if !sinceTime.IsZero() || !untilTime.IsZero() {
		opts = append(opts, sclog.WithParseTimeRange(sinceTime, untilTime))
	}

	if cfg.Zones.URL != "" {
		zones := zonemap.New(cfg.Zones.URL,
			zonemap.WithTimeout(cfg.Zones.Timeout.Std()),
			zonemap.WithLogger(logger))
		if err := zones.Refresh(ctx); err != nil && cfg.Zones.Required {
			return fmt.Errorf("%w: %w", sclog.ErrMappingUnavailable, err)
		}
		opts = append(opts, sclog.WithParseZoneResolver(zones))
	}

	for _, path := range files {
		for ev, err := range sclog.ParseFile(ctx, path, opts...) {
			if err != nil {
				// Ctrl+C: exit silently
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("parse error: %w", err)
			}

			if err := OutputEvent(outFormat, ev, cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("output error: %w", err)
			}
		}
	}

	return nil
}

// parseTimeRange parses since and until strings into time.Time values.
func parseTimeRange(since, until string) (time.Time, time.Time, error) {
	var sinceTime, untilTime time.Time
	var err error

	if since != "" {
		sinceTime, err = time.Parse(time.RFC3339, since)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --since format: %w (expected RFC3339, e.g., 2024-01-15T12:00:00Z)", err)
		}
	}

	if until != "" {
		untilTime, err = time.Parse(time.RFC3339, until)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --until format: %w (expected RFC3339, e.g., 2024-01-15T12:00:00Z)", err)
		}
	}

	// Validate that since is before until
	if !sinceTime.IsZero() && !untilTime.IsZero() && sinceTime.After(untilTime) {
		return time.Time{}, time.Time{}, fmt.Errorf("--since must be before --until")
	}

	return sinceTime, untilTime, nil
}
