// Package tailer provides file tailing for the Star Citizen Game.log.
package tailer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nxadm/tail"
)

// tailerErrBuffer is the buffer size for the error channel.
// A small buffer prevents error loss during brief moments when the consumer
// is busy processing lines.
const tailerErrBuffer = 16

// DefaultPollBackoff is how long callers of Poll should wait after
// it reports no new data.
const DefaultPollBackoff = time.Second

// ErrNotFound is returned by New when the file does not exist.
var ErrNotFound = errors.New("log file not found")

// Tailer wraps nxadm/tail for Game.log tailing.
type Tailer struct {
	t      *tail.Tail
	path   string
	ctx    context.Context
	cancel context.CancelFunc
	lines  chan string
	errors chan error
	doneCh chan struct{}

	mu      sync.Mutex
	stopped bool
}

// Config holds configuration for tailing.
type Config struct {
	// Follow continues reading as the file grows (tail -f).
	Follow bool

	// ReOpen reopens the file when it's truncated or recreated (tail -F).
	ReOpen bool

	// Poll uses stat polling instead of filesystem notifications.
	Poll bool

	// FromStart reads from the beginning of the file instead of the end.
	// Live monitoring never replays history; this is for batch reads and tests.
	FromStart bool
}

// DefaultConfig returns the default configuration for Game.log.
func DefaultConfig() Config {
	return Config{
		Follow:    true,
		ReOpen:    false, // rotation within a session is not supported
		Poll:      false, // Use inotify/ReadDirectoryChangesW when available
		FromStart: false, // Start from end (tail -f behavior)
	}
}

// New opens filepath and starts tailing it.
// Returns an error wrapping ErrNotFound if the file does not exist.
// The provided context controls the tailer's lifecycle.
func New(ctx context.Context, filepath string, cfg Config) (*Tailer, error) {
	info, err := os.Stat(filepath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath)
		}
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, filepath)
	}

	location := &tail.SeekInfo{Offset: 0, Whence: 2} // End of file
	if cfg.FromStart {
		location = &tail.SeekInfo{Offset: 0, Whence: 0}
	}

	t, err := tail.TailFile(filepath, tail.Config{
		Follow:    cfg.Follow,
		ReOpen:    cfg.ReOpen,
		Poll:      cfg.Poll,
		MustExist: true,
		Location:  location,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening tail: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)

	tailer := &Tailer{
		t:      t,
		path:   filepath,
		ctx:    ctx,
		cancel: cancel,
		lines:  make(chan string),
		errors: make(chan error, tailerErrBuffer),
		doneCh: make(chan struct{}),
	}

	go tailer.run()

	return tailer, nil
}

// Path returns the tailed file path.
func (t *Tailer) Path() string {
	return t.path
}

// Lines returns a channel that receives log lines in file order.
// The channel is closed when the tailer stops.
func (t *Tailer) Lines() <-chan string {
	return t.lines
}

// Errors returns a channel that receives errors from tailing.
// Errors are sent non-blocking; if the channel is not read, errors are dropped.
func (t *Tailer) Errors() <-chan error {
	return t.errors
}

// Poll returns the next appended line if one is ready.
// ok is false when no new data is available yet; callers should wait
// DefaultPollBackoff before polling again. Poll also reports false once
// the tailer has stopped.
func (t *Tailer) Poll() (line string, ok bool) {
	select {
	case line, ok = <-t.lines:
		return line, ok
	default:
		return "", false
	}
}

// Done is closed once the tailer's reader goroutine has exited.
func (t *Tailer) Done() <-chan struct{} {
	return t.doneCh
}

// Stop stops tailing, closes the file handle and all channels.
// Safe to call multiple times.
func (t *Tailer) Stop() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	t.mu.Unlock()

	t.cancel()
	<-t.doneCh // Wait for run() to finish
	err := t.t.Stop()
	t.t.Cleanup()
	return err
}

func (t *Tailer) run() {
	defer close(t.doneCh)
	defer close(t.lines)
	defer close(t.errors)

	for {
		select {
		case <-t.ctx.Done():
			return
		case line, ok := <-t.t.Lines:
			if !ok {
				return
			}
			if line.Err != nil {
				select {
				case t.errors <- fmt.Errorf("tail: %w", line.Err):
				case <-t.ctx.Done():
					return
				default:
					// Drop error only if buffer is full
				}
				continue
			}
			select {
			case t.lines <- strings.TrimSuffix(line.Text, "\r"):
			case <-t.ctx.Done():
				return
			}
		}
	}
}
