package sclog

import (
	"github.com/blightveil/sclog/internal/parser"
	"github.com/blightveil/sclog/internal/zonemap"
	"github.com/blightveil/sclog/pkg/sclog/event"
)

// Re-export event types for convenience.
// Users can import just "github.com/blightveil/sclog/pkg/sclog"
// and use sclog.Event, sclog.EventActorDeath, etc.

// Event represents a classified Star Citizen log event.
type Event = event.Event

// EventType represents the type of a log event.
type EventType = event.Type

// Event type constants.
const (
	EventVehicleDestroyed      = event.VehicleDestroyed
	EventActorDeath            = event.ActorDeath
	EventQuantumTravelAttempt  = event.QuantumTravelAttempt
	EventJumpDriveStateChanged = event.JumpDriveStateChanged
	EventDoorStateChanged      = event.DoorStateChanged
	EventZoneAlert             = event.ZoneAlert
	EventUnmatched             = event.Unmatched
)

// DoorState is the recorded state of a transit door.
type DoorState = event.DoorState

// Door states.
const (
	DoorUnknown = event.DoorUnknown
	DoorOpened  = event.DoorOpened
	DoorClosed  = event.DoorClosed
)

// AlertKind names the contested-zone structure in a zone alert.
type AlertKind = event.AlertKind

// Alert kinds.
const (
	AlertExfil        = event.AlertExfil
	AlertRewardRoom   = event.AlertRewardRoom
	AlertSideEntrance = event.AlertSideEntrance
	AlertMainEntrance = event.AlertMainEntrance
	AlertMaintenance  = event.AlertMaintenance
	AlertEntranceA    = event.AlertEntranceA
	AlertEntranceB    = event.AlertEntranceB
	AlertEntranceC    = event.AlertEntranceC

	AlertContestedZone = event.AlertContestedZone
)

// Policy holds the suppression rules applied during classification.
type Policy = parser.Policy

// IgnorePair suppresses actor deaths between matching victim and killer names.
type IgnorePair = parser.IgnorePair

// DefaultPolicy returns the suppression policy used when none is configured.
func DefaultPolicy() Policy {
	return parser.DefaultPolicy()
}

// ZoneResolver translates zone codes into display names.
// A *ZoneMap satisfies it; so does any static lookup.
type ZoneResolver interface {
	Resolve(code string) string
}

// ZoneMap is a remote-backed zone resolver with atomic refresh.
type ZoneMap = zonemap.Resolver

// NewZoneMap returns a ZoneMap that fetches its mapping from url.
// The mapping stays empty until Refresh succeeds.
func NewZoneMap(url string) *ZoneMap {
	return zonemap.New(url)
}

// StaticZones returns a resolver preloaded with mapping.
func StaticZones(mapping map[string]string) *ZoneMap {
	return zonemap.NewStatic(mapping)
}
