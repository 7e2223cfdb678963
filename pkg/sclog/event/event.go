// Package event defines the core Event type for Star Citizen log monitoring.
//
// This package is separated from the main sclog package to avoid import cycles
// between pkg/sclog and the internal classifier packages.
package event

import (
	"sort"
	"strings"
	"time"
)

// Type represents the type of a classified log event.
type Type string

const (
	// VehicleDestroyed indicates a vehicle advanced its destroy level.
	VehicleDestroyed Type = "vehicle_destroyed"

	// ActorDeath indicates an actor was killed.
	ActorDeath Type = "actor_death"

	// QuantumTravelAttempt indicates an entity tried to spool quantum travel.
	QuantumTravelAttempt Type = "quantum_travel_attempt"

	// JumpDriveStateChanged indicates the jump drive switched between Idle and Active.
	JumpDriveStateChanged Type = "jump_drive_state_changed"

	// DoorStateChanged indicates a transit elevator door actually changed state.
	DoorStateChanged Type = "door_state_changed"

	// ZoneAlert indicates traffic through a contested-zone structure.
	ZoneAlert Type = "zone_alert"

	// Unmatched carries a raw line that matched no rule.
	// Only produced when unmatched lines are requested.
	Unmatched Type = "unmatched"
)

// allTypes is the canonical list of all event types.
// Add new event types here when extending the classifier.
var allTypes = []Type{
	VehicleDestroyed,
	ActorDeath,
	QuantumTravelAttempt,
	JumpDriveStateChanged,
	DoorStateChanged,
	ZoneAlert,
	Unmatched,
}

// TypeNames returns a sorted list of all valid event type names.
// This is the single source of truth for event type enumeration.
func TypeNames() []string {
	names := make([]string, len(allTypes))
	for i, t := range allTypes {
		names[i] = string(t)
	}
	sort.Strings(names)
	return names
}

// typeByName maps lowercase string names to Type for efficient lookup.
var typeByName = func() map[string]Type {
	m := make(map[string]Type, len(allTypes))
	for _, t := range allTypes {
		m[string(t)] = t
	}
	return m
}()

// ParseType converts a string to Type if valid.
// It is case-insensitive and trims leading/trailing whitespace.
func ParseType(name string) (Type, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	t, ok := typeByName[name]
	return t, ok
}

// JumpDriveState is the state reported by a jump drive transition.
type JumpDriveState string

const (
	JumpDriveIdle   JumpDriveState = "Idle"
	JumpDriveActive JumpDriveState = "Active"
)

// DoorState is the recorded state of a transit elevator door.
type DoorState string

const (
	// DoorUnknown is the state of every structure at session start.
	DoorUnknown DoorState = ""
	DoorOpened  DoorState = "Opened"
	DoorClosed  DoorState = "Closed"
)

// String returns "Unknown" for the zero state.
func (s DoorState) String() string {
	if s == DoorUnknown {
		return "Unknown"
	}
	return string(s)
}

// AlertKind is the structural role of a contested-zone transit structure.
type AlertKind string

const (
	AlertExfil        AlertKind = "Exfil"
	AlertRewardRoom   AlertKind = "RewardRoom"
	AlertSideEntrance AlertKind = "SideEntrance"
	AlertMainEntrance AlertKind = "MainEntrance"
	AlertMaintenance  AlertKind = "Maintenance"
	AlertEntranceA    AlertKind = "EntranceA"
	AlertEntranceB    AlertKind = "EntranceB"
	AlertEntranceC    AlertKind = "EntranceC"

	// AlertContestedZone is a contested-zone transit manager with no
	// recognized role in its name.
	AlertContestedZone AlertKind = "ContestedZone"
)

// Event represents a classified Star Citizen log event.
//
// Event is a tagged union: Type selects which of the fields below are set.
// Events are values and are never mutated after classification.
type Event struct {
	// Type is the event type.
	Type Type `json:"type"`

	// Timestamp is taken from the log line prefix. Zero if the line had none.
	Timestamp time.Time `json:"timestamp,omitzero"`

	// Zone is the display name of the zone (vehicle_destroyed, actor_death).
	// Falls back to the raw zone code when no mapping exists.
	Zone string `json:"zone,omitempty"`

	// VehicleDestroyed fields.
	Vehicle      string `json:"vehicle,omitempty"`
	VehicleID    string `json:"vehicle_id,omitempty"`
	Destroyer    string `json:"destroyer,omitempty"`
	DestroyerID  string `json:"destroyer_id,omitempty"`
	Cause        string `json:"cause,omitempty"`
	DestroyLevel int    `json:"destroy_level,omitempty"`

	// ActorDeath fields.
	Victim     string `json:"victim,omitempty"`
	VictimID   string `json:"victim_id,omitempty"`
	Killer     string `json:"killer,omitempty"`
	KillerID   string `json:"killer_id,omitempty"`
	Weapon     string `json:"weapon,omitempty"`
	DamageType string `json:"damage_type,omitempty"`

	// Entity is the entity attempting quantum travel.
	Entity string `json:"entity,omitempty"`

	// JumpDriveState is the new jump drive state.
	JumpDriveState JumpDriveState `json:"jump_drive_state,omitempty"`

	// StructureID identifies the transit structure (door and alert events).
	StructureID string `json:"structure_id,omitempty"`

	// Carriage is the transit carriage number, when the line named one.
	Carriage string `json:"carriage,omitempty"`

	// DoorState is the new door state.
	DoorState DoorState `json:"door_state,omitempty"`

	// AlertKind is the structural role that triggered a zone alert.
	AlertKind AlertKind `json:"alert_kind,omitempty"`

	// RawLine is the original log line (only included if requested).
	RawLine string `json:"raw_line,omitempty"`
}
