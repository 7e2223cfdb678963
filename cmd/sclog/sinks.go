package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/blightveil/sclog/internal/config"
	"github.com/blightveil/sclog/internal/sink/discord"
	otelsink "github.com/blightveil/sclog/internal/sink/otel"
	"github.com/blightveil/sclog/internal/sink/wsfeed"
	"github.com/blightveil/sclog/pkg/sclog"
)

const sinkShutdownTimeout = 5 * time.Second

// writerConsumer prints every event to w. The dispatcher calls consumers
// from a single goroutine, so w needs no locking.
func writerConsumer(format string, w io.Writer) sclog.Consumer {
	return sclog.ConsumerFunc{
		ConsumerName: "stdout",
		Fn: func(_ context.Context, ev sclog.Event) error {
			return OutputEvent(format, ev, w)
		},
	}
}

// cleanupStack releases sink resources in reverse registration order.
type cleanupStack []func(context.Context) error

func (s *cleanupStack) push(fn func(context.Context) error) { *s = append(*s, fn) }

func (s cleanupStack) run() error {
	ctx, cancel := context.WithTimeout(context.Background(), sinkShutdownTimeout)
	defer cancel()
	var errs []error
	for i := len(s) - 1; i >= 0; i-- {
		errs = append(errs, s[i](ctx))
	}
	return errors.Join(errs...)
}

// abort releases everything pushed so far and reports err together with
// any cleanup failure.
func (s cleanupStack) abort(err error) error {
	return errors.Join(err, s.run())
}

// registerSinks attaches the configured outbound sinks to d. The returned
// function releases what the dispatcher does not own: the OTel providers
// and the feed HTTP server.
func registerSinks(ctx context.Context, cfg config.Config, d *sclog.Dispatcher, logger *slog.Logger) (func() error, error) {
	var cleanups cleanupStack

	if cfg.Discord.Enabled {
		types, err := NormalizeEventTypes(cfg.Discord.Events)
		if err != nil {
			return nil, fmt.Errorf("discord events: %w", err)
		}
		c, err := discord.New(cfg.Discord.Token, cfg.Discord.ChannelID, discord.WithEvents(types...))
		if err != nil {
			return nil, err
		}
		d.Register(c)
		logger.Info("discord sink enabled", "channel", cfg.Discord.ChannelID)
	}

	if cfg.OTel.Endpoint != "" {
		providers, err := otelsink.NewProviders(ctx, otelsink.ExporterConfig{
			Endpoint:    cfg.OTel.Endpoint,
			ServiceName: cfg.OTel.ServiceName,
			Insecure:    cfg.OTel.Insecure,
		})
		if err != nil {
			return nil, cleanups.abort(err)
		}
		cleanups.push(providers.Shutdown)

		metrics, err := otelsink.NewMetricConsumer(providers.MeterProvider())
		if err != nil {
			return nil, cleanups.abort(err)
		}
		d.Register(otelsink.NewLogConsumer(providers.Logger()))
		d.Register(metrics)
		logger.Info("otel sink enabled", "endpoint", cfg.OTel.Endpoint)
	}

	if cfg.Feed.Enabled {
		hub := wsfeed.NewHub(wsfeed.WithLogger(logger))
		srv, err := serveFeed(cfg.Feed.Addr, cfg.Feed.Path, hub, logger)
		if err != nil {
			return nil, cleanups.abort(err)
		}
		cleanups.push(srv.Shutdown)
		d.Register(hub)
		logger.Info("websocket feed enabled", "addr", srv.Addr, "path", cfg.Feed.Path)
	}

	return cleanups.run, nil
}

// serveFeed binds addr before returning so that a busy port fails the
// command instead of a background goroutine.
func serveFeed(addr, path string, hub http.Handler, logger *slog.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("feed listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(path, hub)
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("websocket feed stopped", "error", err)
		}
	}()
	return srv, nil
}
