package sclog_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/blightveil/sclog/pkg/sclog"
)

// ExampleMonitor demonstrates live monitoring with a channel consumer.
func ExampleMonitor() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT)
	defer stop()

	m := sclog.NewMonitor(
		sclog.WithZoneURL("https://example.com/zones.json"),
		sclog.WithIncludeTypes(sclog.EventActorDeath, sclog.EventZoneAlert),
	)
	defer m.Close()

	events := sclog.NewChannelConsumer(64)
	m.Dispatcher().Register(events)

	// Auto-detect Game.log from the running client
	session, err := m.Start(ctx, "")
	if err != nil {
		log.Fatal(err)
	}
	defer m.Stop(session)

	for {
		select {
		case ev, ok := <-events.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case sclog.EventActorDeath:
				fmt.Printf("%s killed %s in %s\n", ev.Killer, ev.Victim, ev.Zone)
			case sclog.EventZoneAlert:
				fmt.Printf("traffic at %s\n", ev.AlertKind)
			}
		case <-session.Done():
			if err := session.Err(); err != nil {
				log.Printf("monitoring ended: %v", err)
			}
			return
		}
	}
}

// ExampleParseLine demonstrates classifying a single log line.
func ExampleParseLine() {
	line := "<2024-05-01T20:10:11.123Z> CActor::Kill: 'PlayerA' [1] in zone 'OOC_Stanton_2a' killed by 'PlayerB' [2] using 'Weapon_X' [cls] with damage type 'Bullet'"

	for _, ev := range sclog.ParseLine(line) {
		fmt.Printf("Type: %s\n", ev.Type)
		fmt.Printf("Victim: %s\n", ev.Victim)
		fmt.Printf("Killer: %s\n", ev.Killer)
		fmt.Printf("Zone: %s\n", ev.Zone)
	}
	// Output:
	// Type: actor_death
	// Victim: PlayerA
	// Killer: PlayerB
	// Zone: OOC_Stanton_2a
}

// ExampleParseLine_transit demonstrates the door change and zone alert
// derived from one transit line.
func ExampleParseLine_transit() {
	line := "Elevator Door Opened for carriage 2 with manager TransitManager_Dungeon_Exfil_01"

	for _, ev := range sclog.ParseLine(line) {
		switch ev.Type {
		case sclog.EventDoorStateChanged:
			fmt.Printf("%s: %s\n", ev.StructureID, ev.DoorState)
		case sclog.EventZoneAlert:
			fmt.Printf("alert: %s\n", ev.AlertKind)
		}
	}
	// Output:
	// TransitManager_Dungeon_Exfil_01: Opened
	// alert: Exfil
}

// Example_errorsIs demonstrates how to check why monitoring could not start.
func Example_errorsIs() {
	m := sclog.NewMonitor()
	defer m.Close()

	_, err := m.Start(context.Background(), "/nonexistent/Game.log")
	if errors.Is(err, sclog.ErrSourceNotFound) {
		fmt.Println("Game.log not found")
	}
	// Output: Game.log not found
}

// Example_errorsAs_WatchError demonstrates how to extract WatchError details.
// WatchError ends a session whose log file became unreadable.
func Example_errorsAs_WatchError() {
	err := fmt.Errorf("session failed: %w", &sclog.WatchError{
		Op:   sclog.WatchOpTail,
		Path: "/path/to/Game.log",
		Err:  fmt.Errorf("file not accessible"),
	})

	var watchErr *sclog.WatchError
	if errors.As(err, &watchErr) {
		fmt.Printf("Operation: %s\n", watchErr.Op)
		fmt.Printf("Path: %s\n", watchErr.Path)
		fmt.Printf("Error: %v\n", watchErr.Err)
	}
	// Output:
	// Operation: tail
	// Path: /path/to/Game.log
	// Error: file not accessible
}
