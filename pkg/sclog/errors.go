package sclog

import (
	"errors"
	"fmt"

	"github.com/blightveil/sclog/internal/logfinder"
	"github.com/blightveil/sclog/internal/zonemap"
)

// Sentinel errors returned by this package.
var (
	// ErrSourceNotFound is matched by a StartError whose log file path
	// is missing or is not a regular file.
	ErrSourceNotFound = errors.New("log source not found")

	// ErrMappingUnavailable is matched by a StartError when a zone mapping
	// is required but the initial fetch never succeeded.
	ErrMappingUnavailable = errors.New("zone mapping unavailable")

	// ErrAlreadyMonitoring is matched by a StartError when a session is
	// already running on the Monitor.
	ErrAlreadyMonitoring = errors.New("monitoring already running")

	// ErrMonitorClosed is returned by Start after Close.
	ErrMonitorClosed = errors.New("monitor closed")

	// ErrDispatcherClosed is returned by Publish after Close.
	ErrDispatcherClosed = errors.New("dispatcher closed")

	// ErrEventDropped is returned by Publish when the queue is full and the
	// dispatcher was created with WithDropOnFull.
	ErrEventDropped = errors.New("event dropped: dispatch queue full")

	// ErrLogFileNotFound is returned when Game.log cannot be located.
	ErrLogFileNotFound = logfinder.ErrLogFileNotFound

	// ErrProcessNotRunning is returned when log auto-detection finds no
	// running game client.
	ErrProcessNotRunning = logfinder.ErrProcessNotRunning

	// ErrNoZoneSource is wrapped by a fetch error when no mapping URL is set.
	ErrNoZoneSource = zonemap.ErrNoSource
)

// FetchError reports a failed zone mapping fetch.
type FetchError = zonemap.FetchError

// StartErrorKind classifies why monitoring could not start.
type StartErrorKind int

const (
	// SourceNotFound means the log file path was invalid at start time.
	SourceNotFound StartErrorKind = iota + 1
	// MappingUnavailable means the zone mapping policy required a
	// successful fetch and none succeeded.
	MappingUnavailable
	// AlreadyRunning means the Monitor already owns an active session.
	AlreadyRunning
)

func (k StartErrorKind) String() string {
	switch k {
	case SourceNotFound:
		return "source not found"
	case MappingUnavailable:
		return "mapping unavailable"
	case AlreadyRunning:
		return "already running"
	default:
		return fmt.Sprintf("StartErrorKind(%d)", int(k))
	}
}

func (k StartErrorKind) sentinel() error {
	switch k {
	case SourceNotFound:
		return ErrSourceNotFound
	case MappingUnavailable:
		return ErrMappingUnavailable
	case AlreadyRunning:
		return ErrAlreadyMonitoring
	default:
		return nil
	}
}

// StartError is returned by Monitor.Start. It matches the sentinel for its
// Kind with errors.Is and unwraps to the underlying cause.
type StartError struct {
	Kind StartErrorKind
	Path string
	Err  error
}

func (e *StartError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("start monitoring %s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("start monitoring %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e.Kind.
func (e *StartError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// WatchOp identifies the session operation that failed.
type WatchOp string

const (
	// WatchOpTail is reading lines from the log file.
	WatchOpTail WatchOp = "tail"
	// WatchOpPublish is handing an event to the dispatcher.
	WatchOpPublish WatchOp = "publish"
	// WatchOpFetchZones is the initial zone mapping fetch.
	WatchOpFetchZones WatchOp = "fetch_zones"
)

// WatchError reports a failure inside a running session.
type WatchError struct {
	Op   WatchOp
	Path string
	Err  error
}

func (e *WatchError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("watch %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("watch %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WatchError) Unwrap() error {
	return e.Err
}

// ParseError reports a failure reading a log file in batch mode.
type ParseError struct {
	Path string
	Line int // 1-based line number, 0 when not line specific
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
