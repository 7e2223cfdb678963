package sclog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blightveil/sclog/internal/parser"
	"github.com/blightveil/sclog/internal/tailer"
)

// Session is one monitoring run over a single log file.
// Its state is created by Monitor.Start and discarded when it ends.
type Session struct {
	ID        string
	Path      string
	StartedAt time.Time

	state  *parser.State
	zones  ZoneResolver
	tailer *tailer.Tailer
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error

	published atomic.Uint64
}

// Done is closed when the session's pipeline goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the session, or nil if it is still
// running or was stopped normally.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// DoorStates returns a snapshot of every transit structure's door state.
// Safe to call while the session is running.
func (s *Session) DoorStates() map[string]DoorState {
	return s.state.Doors.Snapshot()
}

// ZoneNames returns a copy of the zone mapping in use, or nil when the
// resolver does not expose one.
func (s *Session) ZoneNames() map[string]string {
	if snap, ok := s.zones.(interface{ Snapshot() map[string]string }); ok {
		return snap.Snapshot()
	}
	return nil
}

// Published returns how many events the session handed to the dispatcher.
func (s *Session) Published() uint64 {
	return s.published.Load()
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *Session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
