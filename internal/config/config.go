// Package config loads sclog settings from defaults, an optional YAML or
// TOML file, and environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/blightveil/sclog/internal/parser"
	"github.com/blightveil/sclog/pkg/sclog/event"
)

// Environment variables read by Load.
const (
	EnvConfig         = "SCLOG_CONFIG"
	EnvLogFile        = "SCLOG_LOGFILE"
	EnvZonesURL       = "SCLOG_ZONES_URL"
	EnvDiscordToken   = "SCLOG_DISCORD_TOKEN"
	EnvDiscordChannel = "SCLOG_DISCORD_CHANNEL"
	EnvOTelEndpoint   = "SCLOG_OTEL_ENDPOINT"
)

// ErrUnsupportedFormat is returned for config files that are neither YAML
// nor TOML.
var ErrUnsupportedFormat = errors.New("unsupported config file format")

// Duration is a time.Duration that decodes from strings like "250ms".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	LogFile  string `yaml:"log_file" toml:"log_file"`
	LogLevel string `yaml:"log_level" toml:"log_level"`
	Format   string `yaml:"format" toml:"format"`

	Zones    ZonesConfig    `yaml:"zones" toml:"zones"`
	Policy   PolicyConfig   `yaml:"policy" toml:"policy"`
	Events   EventsConfig   `yaml:"events" toml:"events"`
	Tail     TailConfig     `yaml:"tail" toml:"tail"`
	Dispatch DispatchConfig `yaml:"dispatch" toml:"dispatch"`
	Discord  DiscordConfig  `yaml:"discord" toml:"discord"`
	OTel     OTelConfig     `yaml:"otel" toml:"otel"`
	Feed     FeedConfig     `yaml:"feed" toml:"feed"`
}

type ZonesConfig struct {
	URL      string   `yaml:"url" toml:"url"`
	Required bool     `yaml:"required" toml:"required"`
	Timeout  Duration `yaml:"timeout" toml:"timeout"`
}

type PolicyConfig struct {
	TrackedDestroyers []string            `yaml:"tracked_destroyers" toml:"tracked_destroyers"`
	NPCMarkers        []string            `yaml:"npc_markers" toml:"npc_markers"`
	IgnorePairs       []parser.IgnorePair `yaml:"ignore_pairs" toml:"ignore_pairs"`
}

type EventsConfig struct {
	Include          []string `yaml:"include" toml:"include"`
	Exclude          []string `yaml:"exclude" toml:"exclude"`
	IncludeRawLine   bool     `yaml:"include_raw_line" toml:"include_raw_line"`
	IncludeUnmatched bool     `yaml:"include_unmatched" toml:"include_unmatched"`
}

type TailConfig struct {
	Poll        bool     `yaml:"poll" toml:"poll"`
	PollBackoff Duration `yaml:"poll_backoff" toml:"poll_backoff"`
}

type DispatchConfig struct {
	BufferSize int  `yaml:"buffer_size" toml:"buffer_size"`
	DropOnFull bool `yaml:"drop_on_full" toml:"drop_on_full"`
}

type DiscordConfig struct {
	Enabled   bool     `yaml:"enabled" toml:"enabled"`
	Token     string   `yaml:"-" toml:"-"` // from env only
	ChannelID string   `yaml:"-" toml:"-"` // from env only
	Events    []string `yaml:"events" toml:"events"`
}

type OTelConfig struct {
	Endpoint    string `yaml:"endpoint" toml:"endpoint"`
	ServiceName string `yaml:"service_name" toml:"service_name"`
	Insecure    bool   `yaml:"insecure" toml:"insecure"`
}

type FeedConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
	Path    string `yaml:"path" toml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	def := parser.DefaultPolicy()
	return Config{
		LogLevel: "info",
		Zones: ZonesConfig{
			Timeout: Duration(10 * time.Second),
		},
		Policy: PolicyConfig{
			NPCMarkers: def.NPCMarkers,
		},
		Tail: TailConfig{
			PollBackoff: Duration(time.Second),
		},
		Dispatch: DispatchConfig{
			BufferSize: 256,
		},
		OTel: OTelConfig{
			ServiceName: "sclog",
		},
		Feed: FeedConfig{
			Addr: "127.0.0.1:8787",
			Path: "/ws",
		},
	}
}

// Load builds the configuration. path may be empty, in which case
// SCLOG_CONFIG is consulted; with neither set only defaults and environment
// overrides apply. A named file that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv(EnvZonesURL); v != "" {
		cfg.Zones.URL = v
	}
	if v := os.Getenv(EnvOTelEndpoint); v != "" {
		cfg.OTel.Endpoint = v
	}
	cfg.Discord.Token = os.Getenv(EnvDiscordToken)
	cfg.Discord.ChannelID = os.Getenv(EnvDiscordChannel)
}

// Validate reports the first inconsistency in c.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Format {
	case "", "jsonl", "pretty":
	default:
		return fmt.Errorf("invalid format %q (valid: jsonl, pretty)", c.Format)
	}

	for _, group := range []struct {
		name  string
		types []string
	}{
		{"events.include", c.Events.Include},
		{"events.exclude", c.Events.Exclude},
		{"discord.events", c.Discord.Events},
	} {
		for _, name := range group.types {
			if _, ok := event.ParseType(name); !ok {
				return fmt.Errorf("%s: unknown event type %q", group.name, name)
			}
		}
	}

	if c.Zones.Required && c.Zones.URL == "" {
		return fmt.Errorf("zones.required is set but no zone mapping URL is configured (%s)", EnvZonesURL)
	}
	if c.Zones.Timeout < 0 || c.Tail.PollBackoff < 0 {
		return errors.New("durations must not be negative")
	}
	if c.Dispatch.BufferSize < 0 {
		return fmt.Errorf("dispatch.buffer_size must not be negative, got %d", c.Dispatch.BufferSize)
	}

	if c.Discord.Enabled {
		if c.Discord.Token == "" {
			return fmt.Errorf("discord is enabled but %s is not set", EnvDiscordToken)
		}
		if c.Discord.ChannelID == "" {
			return fmt.Errorf("%s is required when discord is enabled", EnvDiscordChannel)
		}
	}
	if c.Feed.Enabled {
		if c.Feed.Addr == "" {
			return errors.New("feed.addr is required when the feed is enabled")
		}
		if !strings.HasPrefix(c.Feed.Path, "/") {
			return fmt.Errorf("feed.path must start with /, got %q", c.Feed.Path)
		}
	}
	return nil
}

// ParserPolicy converts the policy section for the classifier.
func (c Config) ParserPolicy() parser.Policy {
	return parser.Policy{
		TrackedDestroyers: c.Policy.TrackedDestroyers,
		NPCMarkers:        c.Policy.NPCMarkers,
		IgnorePairs:       c.Policy.IgnorePairs,
	}
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", s)
	}
}
