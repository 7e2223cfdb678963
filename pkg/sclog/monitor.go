package sclog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blightveil/sclog/internal/parser"
	"github.com/blightveil/sclog/internal/tailer"
	"github.com/blightveil/sclog/internal/zonemap"
)

// refresher is implemented by resolvers backed by a remote document.
type refresher interface {
	Refresh(ctx context.Context) error
	Loaded() bool
}

// Monitor supervises at most one monitoring session at a time.
//
// Each Start creates fresh session state: every transit structure starts
// Unknown and the zone mapping is fetched again (unless a shared resolver
// was supplied). Sessions are never restarted automatically.
type Monitor struct {
	cfg        *monitorConfig
	classifier *parser.Classifier
	dispatcher *Dispatcher
	ownsDisp   bool

	mu      sync.Mutex
	current *Session
	closed  bool
}

// NewMonitor creates a monitor. It does not start goroutines other than
// the dispatcher's (cheap to call).
func NewMonitor(opts ...Option) *Monitor {
	cfg := applyOptions(opts)
	m := &Monitor{
		cfg:        cfg,
		classifier: parser.New(cfg.policy),
		dispatcher: cfg.dispatcher,
	}
	if m.dispatcher == nil {
		m.dispatcher = NewDispatcher(WithDispatchLogger(cfg.logger))
		m.ownsDisp = true
	}
	return m
}

// Dispatcher returns the dispatcher events are published to.
// Register consumers on it before calling Start.
func (m *Monitor) Dispatcher() *Dispatcher {
	return m.dispatcher
}

// Start begins monitoring the log file at path. An empty path is located
// with the SCLOG_LOGFILE variable or the running game process.
//
// Start blocks only for the initial zone mapping fetch. The session runs
// until Stop, until ctx is cancelled, or until the file becomes unreadable.
// Errors are *StartError values matching ErrSourceNotFound,
// ErrMappingUnavailable or ErrAlreadyMonitoring.
func (m *Monitor) Start(ctx context.Context, path string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrMonitorClosed
	}
	if m.current != nil && !m.current.finished() {
		return nil, &StartError{Kind: AlreadyRunning, Path: m.current.Path}
	}

	if path == "" {
		found, err := m.cfg.findLog(ctx, "")
		if err != nil {
			return nil, &StartError{Kind: SourceNotFound, Err: err}
		}
		path = found
	}
	if err := checkSource(path); err != nil {
		return nil, &StartError{Kind: SourceNotFound, Path: path, Err: err}
	}

	zones, err := m.loadZones(ctx)
	if err != nil {
		return nil, &StartError{Kind: MappingUnavailable, Path: path, Err: err}
	}

	tcfg := tailer.DefaultConfig()
	tcfg.Poll = m.cfg.pollFS

	sctx, cancel := context.WithCancel(ctx)
	t, err := tailer.New(sctx, path, tcfg)
	if err != nil {
		cancel()
		if errors.Is(err, tailer.ErrNotFound) {
			return nil, &StartError{Kind: SourceNotFound, Path: path, Err: err}
		}
		return nil, &WatchError{Op: WatchOpTail, Path: path, Err: err}
	}

	s := &Session{
		ID:        uuid.NewString(),
		Path:      path,
		StartedAt: time.Now(),
		state:     parser.NewState(zones),
		zones:     zones,
		tailer:    t,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	m.current = s

	m.cfg.logger.Info("monitoring started", "session", s.ID, "path", path)
	go m.run(sctx, s)
	return s, nil
}

// Stop ends s, waits for its pipeline goroutine to exit and closes the
// file. Safe to call multiple times and on already finished sessions.
func (m *Monitor) Stop(s *Session) error {
	if s == nil {
		return nil
	}
	s.cancel()
	<-s.done
	err := s.tailer.Stop()

	m.mu.Lock()
	if m.current == s {
		m.current = nil
	}
	m.mu.Unlock()

	if err != nil {
		return &WatchError{Op: WatchOpTail, Path: s.Path, Err: err}
	}
	return nil
}

// Current returns the running session, or nil if none is active.
func (m *Monitor) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.finished() {
		return nil
	}
	return m.current
}

// Close stops the current session and, if the Monitor created its own
// dispatcher, closes it. Safe to call multiple times.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	s := m.current
	m.mu.Unlock()

	var errs []error
	if s != nil {
		errs = append(errs, m.Stop(s))
	}
	if m.ownsDisp {
		errs = append(errs, m.dispatcher.Close())
	}
	return errors.Join(errs...)
}

// loadZones returns the session's zone resolver after its one-time fetch.
// A failed fetch is fatal only when the mapping is required.
func (m *Monitor) loadZones(ctx context.Context) (ZoneResolver, error) {
	zones := m.cfg.zones
	if zones == nil {
		opts := []zonemap.Option{zonemap.WithLogger(m.cfg.logger)}
		if m.cfg.zoneTimeout > 0 {
			opts = append(opts, zonemap.WithTimeout(m.cfg.zoneTimeout))
		}
		zones = zonemap.New(m.cfg.zoneURL, opts...)
	}

	r, ok := zones.(refresher)
	if !ok {
		return zones, nil
	}

	err := r.Refresh(ctx)
	if m.cfg.requireMapping && !r.Loaded() {
		if err == nil {
			err = ErrMappingUnavailable
		}
		return nil, err
	}
	if err != nil && !r.Loaded() && !errors.Is(err, zonemap.ErrNoSource) {
		m.cfg.logger.Warn("continuing without zone names",
			"error", &WatchError{Op: WatchOpFetchZones, Err: err})
	}
	return zones, nil
}

// run is the session's single pipeline goroutine: poll, classify, filter,
// publish, in log order.
func (m *Monitor) run(ctx context.Context, s *Session) {
	defer close(s.done)
	defer func() { _ = s.tailer.Stop() }()

	logger := m.cfg.logger.With("session", s.ID)
	backoff := time.NewTimer(m.cfg.pollBackoff)
	defer backoff.Stop()

	for {
		if line, ok := s.tailer.Poll(); ok {
			if err := m.processLine(ctx, s, line); err != nil {
				if ctx.Err() == nil {
					s.fail(err)
					logger.Error("monitoring ended", "error", err)
				}
				return
			}
			continue
		}

		backoff.Reset(m.cfg.pollBackoff)
		select {
		case <-ctx.Done():
			logger.Info("monitoring stopped")
			return
		case err, ok := <-s.tailer.Errors():
			if !ok {
				if ctx.Err() == nil {
					s.fail(&WatchError{Op: WatchOpTail, Path: s.Path, Err: errSourceClosed})
				}
				return
			}
			werr := &WatchError{Op: WatchOpTail, Path: s.Path, Err: err}
			logger.Error("log file unreadable", "error", werr)
			s.fail(werr)
			return
		case <-backoff.C:
		}
	}
}

var errSourceClosed = errors.New("line source closed")

func (m *Monitor) processLine(ctx context.Context, s *Session, line string) error {
	evs := m.classifier.Classify(line, s.state)
	if len(evs) == 0 && m.cfg.includeUnmatch && !m.classifier.Match(line) {
		evs = append(evs, Event{Type: EventUnmatched, Timestamp: parser.Timestamp(line), RawLine: line})
	}

	for _, ev := range evs {
		if !m.cfg.filter.Allows(ev.Type) {
			continue
		}
		if m.cfg.includeRawLine {
			ev.RawLine = line
		}
		err := m.dispatcher.Publish(ctx, ev)
		switch {
		case err == nil:
			s.published.Add(1)
		case errors.Is(err, ErrEventDropped):
			// counted by the dispatcher
		default:
			return &WatchError{Op: WatchOpPublish, Path: s.Path, Err: err}
		}
	}
	return nil
}

// checkSource verifies path names an existing regular file.
func checkSource(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLogFileNotFound, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrLogFileNotFound, path)
	}
	return nil
}
