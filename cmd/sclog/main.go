package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/blightveil/sclog/internal/config"
)

var (
	// Version information (set by ldflags)
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	verbose    bool
	logLevel   string
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sclog",
	Short: "Star Citizen Game.log monitor",
	Long: `sclog is a tool for parsing and monitoring the Star Citizen Game.log.

It classifies log lines into events like actor deaths, vehicle
destructions, quantum travel attempts and contested zone traffic.
Events are output as JSON Lines for easy processing with other tools,
and can be forwarded to Discord, an OpenTelemetry collector or a
WebSocket feed.

This is an unofficial tool and is not affiliated with Cloud Imperium Games.`,
	SilenceUsage: true, // Don't show usage on error
}

func init() {
	// Global flags (inherited by all subcommands)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose logging (same as --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error (default from config, else info)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Config file (.yaml, .yml or .toml); also read from "+config.EnvConfig)
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", cobra.FixedCompletions(logLevels, cobra.ShellCompDirectiveNoFileComp))

	// Add subcommands
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sclog %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

// loadConfig reads the config file and environment, then applies the global
// flags on top.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newLogger builds the diagnostic logger. Diagnostics go to w so that event
// output on stdout stays machine readable.
func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
