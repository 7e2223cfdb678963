// Package transit tracks elevator door state and contested-zone structure
// traffic from carriage-transit log lines.
package transit

import (
	"maps"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/blightveil/sclog/pkg/sclog/event"
)

var (
	managerPattern  = regexp.MustCompile(`TransitManager_[\w-]+`)
	carriagePattern = regexp.MustCompile(`(?i)\bcarriage\s+(\d+)`)
	doorPattern     = regexp.MustCompile(`\bElevator Door (Opened|Closed)\b`)
)

const (
	// carriageDoorsTag marks the carriage door reconciliation log category.
	carriageDoorsTag = "[ECarriageDoors]"
	// contestedMarker appears in every contested-zone transit manager name.
	contestedMarker = "Dungeon"
)

// roleMarkers are checked in order; the first match names the alert.
// MainEntrance and SideEntrance come before the lettered entrances so
// "MainEntrance_A" is reported as a main entrance.
var roleMarkers = []struct {
	pattern *regexp.Regexp
	kind    event.AlertKind
}{
	{regexp.MustCompile(`(?i)SideEntrance`), event.AlertSideEntrance},
	{regexp.MustCompile(`(?i)MainEntrance`), event.AlertMainEntrance},
	{regexp.MustCompile(`(?i)Maintenance`), event.AlertMaintenance},
	{regexp.MustCompile(`(?i)RewardRoom`), event.AlertRewardRoom},
	{regexp.MustCompile(`(?i)Exfil`), event.AlertExfil},
	{regexp.MustCompile(`(?i)Entrance_?A(?:[_\-\d\s]|$)`), event.AlertEntranceA},
	{regexp.MustCompile(`(?i)Entrance_?B(?:[_\-\d\s]|$)`), event.AlertEntranceB},
	{regexp.MustCompile(`(?i)Entrance_?C(?:[_\-\d\s]|$)`), event.AlertEntranceC},
}

// Tracker records the last known door state of every transit structure
// seen in a session.
//
// Observe is called by a single pipeline goroutine. Snapshot and State may
// be called concurrently from other goroutines.
type Tracker struct {
	mu    sync.RWMutex
	doors map[string]event.DoorState
}

// New returns a Tracker with every structure in the Unknown state.
func New() *Tracker {
	return &Tracker{doors: make(map[string]event.DoorState)}
}

// IsTransitLine reports whether line belongs to a carriage-transit log entry.
func IsTransitLine(line string) bool {
	return strings.Contains(line, carriageDoorsTag) ||
		managerPattern.MatchString(line) ||
		doorPattern.MatchString(line)
}

// StructureID extracts the structure identifier from a transit line.
// The transit manager name is preferred, then the carriage number.
// Lines naming neither share the empty id.
func StructureID(line string) string {
	if m := managerPattern.FindString(line); m != "" {
		return m
	}
	if m := carriagePattern.FindStringSubmatch(line); m != nil {
		return "carriage-" + m[1]
	}
	return ""
}

// Observe derives door and zone alert events from line.
// Door events are emitted only when the recorded state actually changes.
// Zone alerts are emitted every time a contested-zone structure is seen.
func (t *Tracker) Observe(line string, ts time.Time) []event.Event {
	if !IsTransitLine(line) {
		return nil
	}

	id := StructureID(line)
	var carriage string
	if m := carriagePattern.FindStringSubmatch(line); m != nil {
		carriage = m[1]
	}

	var out []event.Event
	if m := doorPattern.FindStringSubmatch(line); m != nil {
		to := event.DoorState(m[1])
		if t.Transition(id, to) {
			out = append(out, event.Event{
				Type:        event.DoorStateChanged,
				Timestamp:   ts,
				StructureID: id,
				Carriage:    carriage,
				DoorState:   to,
			})
		}
	}

	if kind, ok := roleOf(line); ok {
		out = append(out, event.Event{
			Type:        event.ZoneAlert,
			Timestamp:   ts,
			StructureID: id,
			Carriage:    carriage,
			AlertKind:   kind,
		})
	}
	return out
}

// Transition records state to for structure id and reports whether it
// differs from the previously recorded state.
func (t *Tracker) Transition(id string, to event.DoorState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.doors[id] == to {
		return false
	}
	t.doors[id] = to
	return true
}

// State returns the recorded state for id, DoorUnknown if never seen.
func (t *Tracker) State(id string) event.DoorState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.doors[id]
}

// Snapshot returns a copy of all recorded door states.
func (t *Tracker) Snapshot() map[string]event.DoorState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.doors)
}

// Len returns the number of structures seen so far.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.doors)
}

// roleOf names the alert for a transit line. A contested-zone manager
// without a recognized role still raises a generic ContestedZone alert.
func roleOf(line string) (event.AlertKind, bool) {
	for _, r := range roleMarkers {
		if r.pattern.MatchString(line) {
			return r.kind, true
		}
	}
	if strings.Contains(managerPattern.FindString(line), contestedMarker) {
		return event.AlertContestedZone, true
	}
	return "", false
}
