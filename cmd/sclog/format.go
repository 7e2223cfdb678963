package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/blightveil/sclog/pkg/sclog"
)

// ValidFormats lists the accepted --format values.
var ValidFormats = map[string]bool{
	"jsonl":  true,
	"pretty": true,
}

func formatNames() []string {
	return slices.Sorted(maps.Keys(ValidFormats))
}

// defaultFormat is pretty for an interactive terminal and jsonl otherwise.
func defaultFormat(f *os.File) string {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return "pretty"
	}
	return "jsonl"
}

// resolveFormat picks the flag value, then the config value, then the
// terminal default.
func resolveFormat(flagValue, cfgValue string, out *os.File) (string, error) {
	f := flagValue
	if f == "" {
		f = cfgValue
	}
	if f == "" {
		f = defaultFormat(out)
	}
	if !ValidFormats[f] {
		return "", fmt.Errorf("invalid format %q: must be one of: %s", f, strings.Join(formatNames(), ", "))
	}
	return f, nil
}

// OutputEvent writes ev to w in the given format.
func OutputEvent(format string, ev sclog.Event, w io.Writer) error {
	switch format {
	case "jsonl":
		return OutputJSON(ev, w)
	case "pretty":
		return OutputPretty(ev, w)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// OutputJSON writes ev as a single JSON line.
func OutputJSON(ev sclog.Event, w io.Writer) error {
	return json.NewEncoder(w).Encode(ev)
}

var (
	timeStyle = lipgloss.NewStyle().Faint(true)

	typeStyles = map[sclog.EventType]lipgloss.Style{
		sclog.EventActorDeath:            lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		sclog.EventVehicleDestroyed:      lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
		sclog.EventQuantumTravelAttempt:  lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		sclog.EventJumpDriveStateChanged: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		sclog.EventDoorStateChanged:      lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		sclog.EventZoneAlert:             lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true),
		sclog.EventUnmatched:             lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
)

// OutputPretty writes ev as one human readable, colored line.
func OutputPretty(ev sclog.Event, w io.Writer) error {
	ts := "--:--:--"
	if !ev.Timestamp.IsZero() {
		ts = ev.Timestamp.Local().Format("15:04:05")
	}

	msg := prettyMessage(ev)
	if style, ok := typeStyles[ev.Type]; ok {
		msg = style.Render(msg)
	}

	_, err := fmt.Fprintf(w, "%s %s\n", timeStyle.Render("["+ts+"]"), msg)
	return err
}

func prettyMessage(ev sclog.Event) string {
	switch ev.Type {
	case sclog.EventActorDeath:
		return fmt.Sprintf("✖ %s killed by %s in %s (%s, %s)",
			ev.Victim, ev.Killer, orDash(ev.Zone), orDash(ev.Weapon), orDash(ev.DamageType))
	case sclog.EventVehicleDestroyed:
		return fmt.Sprintf("✖ %s destroyed by %s in %s (level %d, %s)",
			ev.Vehicle, ev.Destroyer, orDash(ev.Zone), ev.DestroyLevel, orDash(ev.Cause))
	case sclog.EventQuantumTravelAttempt:
		return fmt.Sprintf("» %s spooling quantum travel", ev.Entity)
	case sclog.EventJumpDriveStateChanged:
		return fmt.Sprintf("» Jump drive %s", ev.JumpDriveState)
	case sclog.EventDoorStateChanged:
		return fmt.Sprintf("▣ %s door %s", ev.StructureID, ev.DoorState)
	case sclog.EventZoneAlert:
		return fmt.Sprintf("! %s traffic at %s", ev.AlertKind, ev.StructureID)
	case sclog.EventUnmatched:
		return "? " + ev.RawLine
	default:
		return fmt.Sprintf("%s %+v", ev.Type, ev)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
