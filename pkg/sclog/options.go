package sclog

import (
	"context"
	"log/slog"
	"time"

	"github.com/blightveil/sclog/internal/logfinder"
	"github.com/blightveil/sclog/internal/tailer"
)

// Option configures a Monitor using the functional options pattern.
type Option func(*monitorConfig)

// monitorConfig holds internal configuration for the monitor.
type monitorConfig struct {
	zoneURL        string
	zoneTimeout    time.Duration
	zones          ZoneResolver
	requireMapping bool
	policy         Policy
	dispatcher     *Dispatcher
	filter         *compiledFilter
	includeRawLine bool
	includeUnmatch bool
	pollFS         bool
	pollBackoff    time.Duration
	findLog        func(ctx context.Context, explicit string) (string, error)
	logger         *slog.Logger
}

// defaultMonitorConfig returns a monitorConfig with sensible defaults.
func defaultMonitorConfig() *monitorConfig {
	return &monitorConfig{
		policy:      DefaultPolicy(),
		pollBackoff: tailer.DefaultPollBackoff,
		findLog:     logfinder.FindLogFile,
	}
}

// applyOptions applies functional options to a monitorConfig.
func applyOptions(opts []Option) *monitorConfig {
	cfg := defaultMonitorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.pollBackoff <= 0 {
		cfg.pollBackoff = tailer.DefaultPollBackoff
	}
	return cfg
}

// WithZoneURL sets the remote zone mapping document fetched when each
// session starts. Ignored when WithZoneResolver is also given.
func WithZoneURL(url string) Option {
	return func(c *monitorConfig) {
		c.zoneURL = url
	}
}

// WithZoneTimeout bounds each HTTP attempt of the zone mapping fetch.
// Zero keeps the resolver default.
func WithZoneTimeout(d time.Duration) Option {
	return func(c *monitorConfig) {
		c.zoneTimeout = d
	}
}

// WithZoneResolver shares a resolver across sessions instead of fetching a
// fresh mapping on every start. If r also has Refresh and Loaded methods
// (as *ZoneMap does), Start refreshes it once.
func WithZoneResolver(r ZoneResolver) Option {
	return func(c *monitorConfig) {
		c.zones = r
	}
}

// WithRequireZoneMapping makes Start fail with MappingUnavailable when no
// zone mapping could be loaded. Default: false (continue untranslated).
func WithRequireZoneMapping(require bool) Option {
	return func(c *monitorConfig) {
		c.requireMapping = require
	}
}

// WithPolicy sets the suppression policy. Default: DefaultPolicy().
func WithPolicy(p Policy) Option {
	return func(c *monitorConfig) {
		c.policy = p
	}
}

// WithDispatcher publishes events to d. The caller keeps ownership and
// must Close it. If not set, the Monitor creates and owns one.
func WithDispatcher(d *Dispatcher) Option {
	return func(c *monitorConfig) {
		c.dispatcher = d
	}
}

// WithIncludeTypes filters events to only include the specified types.
// If called multiple times, only the last call takes effect.
func WithIncludeTypes(types ...EventType) Option {
	return func(c *monitorConfig) {
		if c.filter == nil {
			c.filter = &compiledFilter{}
		}
		c.filter.include = typeSet(types)
	}
}

// WithExcludeTypes filters out events of the specified types.
// Exclude takes precedence over include.
// If called multiple times, only the last call takes effect.
func WithExcludeTypes(types ...EventType) Option {
	return func(c *monitorConfig) {
		if c.filter == nil {
			c.filter = &compiledFilter{}
		}
		c.filter.exclude = typeSet(types)
	}
}

// WithFilter sets both include and exclude type filters.
// Exclude takes precedence over include.
func WithFilter(include, exclude []EventType) Option {
	return func(c *monitorConfig) {
		c.filter = newCompiledFilter(include, exclude)
	}
}

// WithIncludeRawLine includes the original log line in Event.RawLine.
// Default: false.
func WithIncludeRawLine(include bool) Option {
	return func(c *monitorConfig) {
		c.includeRawLine = include
	}
}

// WithIncludeUnmatched publishes an Unmatched event carrying the raw line
// for every line no rule recognizes. Default: false.
func WithIncludeUnmatched(include bool) Option {
	return func(c *monitorConfig) {
		c.includeUnmatch = include
	}
}

// WithPoll makes the tailer stat the file instead of using filesystem
// notifications. Useful on network drives. Default: false.
func WithPoll(poll bool) Option {
	return func(c *monitorConfig) {
		c.pollFS = poll
	}
}

// WithPollBackoff sets how long the session waits after finding no new
// lines. Stop is observed within one backoff. Default: 1 second.
func WithPollBackoff(d time.Duration) Option {
	return func(c *monitorConfig) {
		c.pollBackoff = d
	}
}

// WithLogger sets the slog logger for debug output.
// If nil (default), logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *monitorConfig) {
		c.logger = logger
	}
}

// ParseOption configures ParseFile behavior.
type ParseOption func(*parseConfig)

// parseConfig holds internal configuration for parsing.
type parseConfig struct {
	filter         *compiledFilter
	policy         Policy
	zones          ZoneResolver
	includeRawLine bool
	includeUnmatch bool
	since          time.Time
	until          time.Time
}

// defaultParseConfig returns a parseConfig with sensible defaults.
func defaultParseConfig() *parseConfig {
	return &parseConfig{policy: DefaultPolicy()}
}

// applyParseOptions applies functional options to a parseConfig.
func applyParseOptions(opts []ParseOption) *parseConfig {
	cfg := defaultParseConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithParseIncludeTypes filters events to only include the specified types.
func WithParseIncludeTypes(types ...EventType) ParseOption {
	return func(c *parseConfig) {
		if c.filter == nil {
			c.filter = &compiledFilter{}
		}
		c.filter.include = typeSet(types)
	}
}

// WithParseExcludeTypes filters out events of the specified types.
func WithParseExcludeTypes(types ...EventType) ParseOption {
	return func(c *parseConfig) {
		if c.filter == nil {
			c.filter = &compiledFilter{}
		}
		c.filter.exclude = typeSet(types)
	}
}

// WithParseIncludeRawLine includes the original log line in Event.RawLine.
func WithParseIncludeRawLine(include bool) ParseOption {
	return func(c *parseConfig) {
		c.includeRawLine = include
	}
}

// WithParseIncludeUnmatched yields an Unmatched event for lines no rule
// recognizes.
func WithParseIncludeUnmatched(include bool) ParseOption {
	return func(c *parseConfig) {
		c.includeUnmatch = include
	}
}

// WithParsePolicy sets the suppression policy. Default: DefaultPolicy().
func WithParsePolicy(p Policy) ParseOption {
	return func(c *parseConfig) {
		c.policy = p
	}
}

// WithParseZoneResolver translates zone codes while parsing.
func WithParseZoneResolver(r ZoneResolver) ParseOption {
	return func(c *parseConfig) {
		c.zones = r
	}
}

// WithParseTimeRange filters events to only include those within the time range.
// since is inclusive, until is exclusive.
// Zero values are ignored (no filtering for that boundary).
// Events without a timestamp are never filtered out.
func WithParseTimeRange(since, until time.Time) ParseOption {
	return func(c *parseConfig) {
		c.since = since
		c.until = until
	}
}
