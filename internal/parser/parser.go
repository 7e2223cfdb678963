// Package parser classifies Star Citizen Game.log lines into events.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/blightveil/sclog/internal/transit"
	"github.com/blightveil/sclog/pkg/sclog/event"
)

var (
	timestampPattern = regexp.MustCompile(`^<(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?Z)>`)

	vehiclePattern = regexp.MustCompile(
		`Vehicle '([^']+)'(?: \[(\d+)\])?(?: in zone '([^']+)')?.*?destroy level (?:\d+ to )?(\d+).*?caused by '([^']+)'(?: \[(\d+)\])?(?: with '([^']+)')?`)

	killPattern = regexp.MustCompile(
		`CActor::Kill: '([^']+)'(?: \[(\d+)\])?(?: in zone '([^']+)')?.*?killed by '([^']+)'(?: \[(\d+)\])?.*?using '([^']+)'(?: \[[^\]]*\])?(?: with damage type '([^']+)')?`)

	quantumPattern = regexp.MustCompile(`Entity Trying To QT: '([^']+)'?`)

	// Jump drive lines name the old and the new state. The greedy gap
	// leaves the last marker, the current state, in the second group.
	jumpDrivePattern = regexp.MustCompile(`Changing state to (Idle|Active).*state to (Idle|Active)`)
)

// Resolver translates zone codes into display names.
type Resolver interface {
	Resolve(code string) string
}

// State is the session state consulted during classification.
// Zones may be nil (no translation); Doors may be nil (transit tracking off).
type State struct {
	Zones Resolver
	Doors *transit.Tracker
}

// NewState returns a State with a fresh door tracker.
func NewState(zones Resolver) *State {
	return &State{Zones: zones, Doors: transit.New()}
}

func (s *State) resolve(code string) string {
	if s == nil || s.Zones == nil {
		return code
	}
	return s.Zones.Resolve(code)
}

// IgnorePair suppresses actor deaths whose victim and killer contain the
// given substrings. An empty side matches any name.
type IgnorePair struct {
	Victim string `yaml:"victim" toml:"victim"`
	Killer string `yaml:"killer" toml:"killer"`
}

func (p IgnorePair) matches(victim, killer string) bool {
	if p.Victim == "" && p.Killer == "" {
		return false
	}
	return containsFold(victim, p.Victim) && containsFold(killer, p.Killer)
}

// Policy holds the suppression rules applied after a pattern matches.
type Policy struct {
	// TrackedDestroyers limits vehicle destructions to destroyers whose name
	// contains one of these strings. Empty means every destroyer is tracked.
	TrackedDestroyers []string

	// NPCMarkers identify synthetic NPC names. A kill where both victim and
	// killer are NPCs is dropped.
	NPCMarkers []string

	// IgnorePairs drop kills between specific victim/killer kinds.
	IgnorePairs []IgnorePair
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{NPCMarkers: []string{"PU_Human"}}
}

func (p Policy) isNPC(name string) bool {
	for _, m := range p.NPCMarkers {
		if m != "" && strings.Contains(name, m) {
			return true
		}
	}
	return false
}

func (p Policy) tracksDestroyer(name string) bool {
	if len(p.TrackedDestroyers) == 0 {
		return true
	}
	for _, d := range p.TrackedDestroyers {
		if d != "" && containsFold(name, d) {
			return true
		}
	}
	return false
}

func (p Policy) ignoresKill(victim, killer string) bool {
	if p.isNPC(victim) && p.isNPC(killer) {
		return true
	}
	for _, pair := range p.IgnorePairs {
		if pair.matches(victim, killer) {
			return true
		}
	}
	return false
}

// rule is one entry of the ordered classification table.
// extract returns false when the match is suppressed.
type rule struct {
	name    event.Type
	pattern *regexp.Regexp
	extract func(p Policy, m []string, st *State) (event.Event, bool)
}

// rules are evaluated in order; the first matching pattern wins even when
// its suppression drops the event.
var rules = []rule{
	{event.VehicleDestroyed, vehiclePattern, extractVehicle},
	{event.ActorDeath, killPattern, extractKill},
	{event.QuantumTravelAttempt, quantumPattern, extractQuantum},
	{event.JumpDriveStateChanged, jumpDrivePattern, extractJumpDrive},
}

// RuleNames returns the primary rule names in priority order.
func RuleNames() []event.Type {
	names := make([]event.Type, len(rules))
	for i, r := range rules {
		names[i] = r.name
	}
	return names
}

// Classifier applies the rule table and the transit tracker to log lines.
// A Classifier holds no session state and is safe for concurrent use.
type Classifier struct {
	policy Policy
}

// New creates a Classifier with the given suppression policy.
func New(policy Policy) *Classifier {
	return &Classifier{policy: policy}
}

// Policy returns the classifier's suppression policy.
func (c *Classifier) Policy() Policy {
	return c.policy
}

// Classify turns one line into zero or more events.
//
// At most one primary event is produced (first matching rule wins). The
// transit tracker then observes every line, adding at most one door event
// and one zone alert. Events are returned in that order. A line that
// matches nothing yields nil.
func (c *Classifier) Classify(line string, st *State) []event.Event {
	ts := Timestamp(line)

	var out []event.Event
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if ev, ok := r.extract(c.policy, m, st); ok {
			ev.Timestamp = ts
			out = append(out, ev)
		}
		break
	}

	if st != nil && st.Doors != nil {
		out = append(out, st.Doors.Observe(line, ts)...)
	}
	return out
}

// Match reports whether any rule or the transit tracker recognizes line,
// regardless of suppression.
func (c *Classifier) Match(line string) bool {
	for _, r := range rules {
		if r.pattern.MatchString(line) {
			return true
		}
	}
	return transit.IsTransitLine(line)
}

func extractVehicle(p Policy, m []string, st *State) (event.Event, bool) {
	if !p.tracksDestroyer(m[5]) {
		return event.Event{}, false
	}
	level, _ := strconv.Atoi(m[4])
	return event.Event{
		Type:         event.VehicleDestroyed,
		Vehicle:      m[1],
		VehicleID:    m[2],
		Zone:         st.resolve(m[3]),
		DestroyLevel: level,
		Destroyer:    m[5],
		DestroyerID:  m[6],
		Cause:        m[7],
	}, true
}

func extractKill(p Policy, m []string, st *State) (event.Event, bool) {
	victim, killer := m[1], m[4]
	if p.ignoresKill(victim, killer) {
		return event.Event{}, false
	}
	return event.Event{
		Type:       event.ActorDeath,
		Victim:     victim,
		VictimID:   m[2],
		Zone:       st.resolve(m[3]),
		Killer:     killer,
		KillerID:   m[5],
		Weapon:     m[6],
		DamageType: m[7],
	}, true
}

func extractQuantum(_ Policy, m []string, _ *State) (event.Event, bool) {
	return event.Event{
		Type:   event.QuantumTravelAttempt,
		Entity: m[1],
	}, true
}

func extractJumpDrive(_ Policy, m []string, _ *State) (event.Event, bool) {
	return event.Event{
		Type:           event.JumpDriveStateChanged,
		JumpDriveState: event.JumpDriveState(m[2]),
	}, true
}

// Timestamp returns the time in the line's <...Z> prefix, or the zero time.
func Timestamp(line string) time.Time {
	m := timestampPattern.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, m[1])
	if err != nil {
		return time.Time{}
	}
	return ts
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
