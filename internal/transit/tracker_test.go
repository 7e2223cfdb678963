package transit

import (
	"testing"
	"time"

	"github.com/blightveil/sclog/pkg/sclog/event"
)

const (
	exfilOpened = "<2024-05-01T20:10:11.123Z> [Notice] <Transit> Elevator Door Opened for carriage 2 with manager TransitManager_Dungeon_Exfil_01"
	exfilClosed = "<2024-05-01T20:10:15.000Z> [Notice] <Transit> Elevator Door Closed for carriage 2 with manager TransitManager_Dungeon_Exfil_01"
)

func doorEvents(evs []event.Event) []event.Event {
	var out []event.Event
	for _, ev := range evs {
		if ev.Type == event.DoorStateChanged {
			out = append(out, ev)
		}
	}
	return out
}

func TestObserve_FirstOpenedEmitsOnce(t *testing.T) {
	tr := New()

	first := doorEvents(tr.Observe(exfilOpened, time.Time{}))
	if len(first) != 1 {
		t.Fatalf("first Opened: got %d door events, want 1", len(first))
	}
	if first[0].DoorState != event.DoorOpened {
		t.Errorf("DoorState = %q, want %q", first[0].DoorState, event.DoorOpened)
	}
	if first[0].StructureID != "TransitManager_Dungeon_Exfil_01" {
		t.Errorf("StructureID = %q", first[0].StructureID)
	}
	if first[0].Carriage != "2" {
		t.Errorf("Carriage = %q, want %q", first[0].Carriage, "2")
	}

	second := doorEvents(tr.Observe(exfilOpened, time.Time{}))
	if len(second) != 0 {
		t.Errorf("repeated Opened: got %d door events, want 0", len(second))
	}
}

func TestObserve_OpenCloseOpen(t *testing.T) {
	tr := New()

	var total int
	for _, line := range []string{exfilOpened, exfilClosed, exfilClosed, exfilOpened} {
		total += len(doorEvents(tr.Observe(line, time.Time{})))
	}
	if total != 3 {
		t.Errorf("Opened/Closed/Closed/Opened: got %d door events, want 3", total)
	}
}

func TestObserve_ThreeLinesTwoDistinctStates(t *testing.T) {
	tr := New()

	// Structure already went Opened once; Opened -> Closed -> Opened emits two.
	tr.Transition("TransitManager_Dungeon_Exfil_01", event.DoorOpened)

	var got []event.DoorState
	for _, line := range []string{exfilOpened, exfilClosed, exfilOpened} {
		for _, ev := range doorEvents(tr.Observe(line, time.Time{})) {
			got = append(got, ev.DoorState)
		}
	}
	if len(got) != 2 || got[0] != event.DoorClosed || got[1] != event.DoorOpened {
		t.Errorf("door events = %v, want [Closed Opened]", got)
	}
}

func TestObserve_ClosedFromUnknown(t *testing.T) {
	tr := New()
	evs := doorEvents(tr.Observe(exfilClosed, time.Time{}))
	if len(evs) != 1 || evs[0].DoorState != event.DoorClosed {
		t.Errorf("Closed from Unknown: got %+v, want one Closed event", evs)
	}
}

func TestObserve_StructuresAreIndependent(t *testing.T) {
	tr := New()
	a := "Elevator Door Opened carriage 1 TransitManager_Dungeon_EntranceA_01"
	b := "Elevator Door Opened carriage 1 TransitManager_Dungeon_EntranceB_01"

	if n := len(doorEvents(tr.Observe(a, time.Time{}))); n != 1 {
		t.Errorf("structure A: got %d door events, want 1", n)
	}
	if n := len(doorEvents(tr.Observe(b, time.Time{}))); n != 1 {
		t.Errorf("structure B: got %d door events, want 1", n)
	}
	if tr.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tr.Len())
	}
}

func TestObserve_ZoneAlertEveryTime(t *testing.T) {
	tr := New()
	line := "[ECarriageDoors] : Reconciled Doors for carriage 4 with manager TransitManager_Dungeon_RewardRoom_02"

	for i := 0; i < 3; i++ {
		evs := tr.Observe(line, time.Time{})
		if len(evs) != 1 {
			t.Fatalf("iteration %d: got %d events, want 1", i, len(evs))
		}
		if evs[0].Type != event.ZoneAlert || evs[0].AlertKind != event.AlertRewardRoom {
			t.Errorf("iteration %d: got %+v, want RewardRoom zone alert", i, evs[0])
		}
	}
	if tr.Len() != 0 {
		t.Errorf("zone alerts must not touch door state, Len() = %d", tr.Len())
	}
}

func TestObserve_AlertKinds(t *testing.T) {
	tests := []struct {
		manager string
		want    event.AlertKind
	}{
		{"TransitManager_Dungeon_Exfil_01", event.AlertExfil},
		{"TransitManager_Dungeon_RewardRoom", event.AlertRewardRoom},
		{"TransitManager_Dungeon_SideEntrance_02", event.AlertSideEntrance},
		{"TransitManager_Dungeon_MainEntrance_A", event.AlertMainEntrance},
		{"TransitManager_Dungeon_Maintenance", event.AlertMaintenance},
		{"TransitManager_Dungeon_EntranceA_01", event.AlertEntranceA},
		{"TransitManager_Dungeon_Entrance_B", event.AlertEntranceB},
		{"TransitManager_Dungeon_EntranceC", event.AlertEntranceC},
		{"TransitManager_Dungeon_Elevator_07", event.AlertContestedZone},
	}

	for _, tt := range tests {
		t.Run(tt.manager, func(t *testing.T) {
			line := "[ECarriageDoors] : Reconciled Doors for carriage 1 with manager " + tt.manager
			evs := New().Observe(line, time.Time{})
			if len(evs) != 1 {
				t.Fatalf("got %d events, want 1", len(evs))
			}
			if evs[0].AlertKind != tt.want {
				t.Errorf("AlertKind = %q, want %q", evs[0].AlertKind, tt.want)
			}
			if evs[0].StructureID != tt.manager {
				t.Errorf("StructureID = %q, want %q", evs[0].StructureID, tt.manager)
			}
		})
	}
}

func TestObserve_DoorAndAlertOnSameLine(t *testing.T) {
	tr := New()
	ts := time.Date(2024, 5, 1, 20, 10, 11, 0, time.UTC)

	evs := tr.Observe(exfilOpened, ts)
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if evs[0].Type != event.DoorStateChanged || evs[1].Type != event.ZoneAlert {
		t.Errorf("order = [%s %s], want [door_state_changed zone_alert]", evs[0].Type, evs[1].Type)
	}
	for _, ev := range evs {
		if !ev.Timestamp.Equal(ts) {
			t.Errorf("%s Timestamp = %v, want %v", ev.Type, ev.Timestamp, ts)
		}
	}

	// Repeated line: alert again, no door event.
	evs = tr.Observe(exfilOpened, ts)
	if len(evs) != 1 || evs[0].Type != event.ZoneAlert {
		t.Errorf("repeat: got %+v, want a single zone alert", evs)
	}
}

func TestObserve_NonContestedManagerNoAlert(t *testing.T) {
	line := "[ECarriageDoors] : Reconciled Doors for carriage 3 with manager TransitManager_Lorville_Gates_02"
	if evs := New().Observe(line, time.Time{}); len(evs) != 0 {
		t.Errorf("Observe() = %+v, want none for a city transit manager", evs)
	}
}

func TestObserve_OtherDoorsIgnored(t *testing.T) {
	tr := New()
	lines := []string{
		"<2024-05-01T20:10:00.000Z> [Notice] <Hangar> Hangar Door Opened for pad 04",
		"<2024-05-01T20:10:01.000Z> [Notice] <Vehicle> Cargo Doors Closed on AEGS_Gladius_123",
		"<2024-05-01T20:10:02.000Z> [Notice] <Room> Door Opened",
	}
	for _, line := range lines {
		if evs := tr.Observe(line, time.Time{}); len(evs) != 0 {
			t.Errorf("Observe(%q) = %+v, want none", line, evs)
		}
	}
	if tr.Len() != 0 {
		t.Fatalf("Len() = %d after non-elevator doors, want 0", tr.Len())
	}

	// The anonymous elevator structure is still Unknown, so its first
	// Opened is a real transition.
	evs := doorEvents(tr.Observe("<2024-05-01T20:10:03.000Z> [Notice] Elevator Door Opened", time.Time{}))
	if len(evs) != 1 || evs[0].StructureID != "" || evs[0].DoorState != event.DoorOpened {
		t.Errorf("elevator door after other doors: got %+v, want one anonymous Opened", evs)
	}
}

func TestObserve_NonTransitLine(t *testing.T) {
	tr := New()
	lines := []string{
		"",
		"<2024-05-01T20:10:11.123Z> [Notice] <Context Establisher Done> ready",
		"CActor::Kill: 'A' [1] in zone 'z' killed by 'B' [2] using 'W' [c] with damage type 'Bullet'",
	}
	for _, line := range lines {
		if evs := tr.Observe(line, time.Time{}); len(evs) != 0 {
			t.Errorf("Observe(%q) = %+v, want none", line, evs)
		}
	}
}

func TestStructureID(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"Elevator Door Opened manager TransitManager_Dungeon_Exfil_01 carriage 3", "TransitManager_Dungeon_Exfil_01"},
		{"Elevator Door Opened for carriage 3", "carriage-3"},
		{"Elevator Door Opened", ""},
	}
	for _, tt := range tests {
		if got := StructureID(tt.line); got != tt.want {
			t.Errorf("StructureID(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestSnapshot_IsCopy(t *testing.T) {
	tr := New()
	tr.Observe(exfilOpened, time.Time{})

	snap := tr.Snapshot()
	snap["TransitManager_Dungeon_Exfil_01"] = event.DoorClosed

	if got := tr.State("TransitManager_Dungeon_Exfil_01"); got != event.DoorOpened {
		t.Errorf("State() = %q after mutating snapshot, want %q", got, event.DoorOpened)
	}
	if got := tr.State("never-seen"); got != event.DoorUnknown {
		t.Errorf("State(never-seen) = %q, want Unknown", got)
	}
}
