// Package sclog provides classification and live monitoring of the
// Star Citizen Game.log.
//
// This package allows you to:
//   - Classify log lines into typed events (deaths, vehicle destruction,
//     quantum travel, jump drive, transit doors, contested-zone alerts)
//   - Monitor the live log and fan events out to consumers
//   - Translate internal zone codes into readable names
//
// # Basic Usage
//
// To monitor the game log in real-time:
//
//	m := sclog.NewMonitor(
//	    sclog.WithZoneURL("https://example.com/zones.json"),
//	    sclog.WithIncludeTypes(sclog.EventActorDeath),
//	)
//	defer m.Close()
//
//	events := sclog.NewChannelConsumer(64)
//	m.Dispatcher().Register(events)
//
//	session, err := m.Start(ctx, "") // "" auto-detects Game.log
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Stop(session)
//
//	for ev := range events.Events() {
//	    fmt.Printf("%s killed %s in %s\n", ev.Killer, ev.Victim, ev.Zone)
//	}
//
// To classify a single line:
//
//	for _, ev := range sclog.ParseLine(line) {
//	    // process event
//	}
//
// # Sessions
//
// A session owns its door-state map and zone mapping. Stopping and starting
// again begins from scratch: every structure is Unknown, so the next
// "Opened" line is reported even if the door was open before.
//
// # Disclaimer
//
// This is an unofficial tool and is not affiliated with Cloud Imperium Games.
package sclog
