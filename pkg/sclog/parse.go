package sclog

import (
	"bufio"
	"context"
	"errors"
	"iter"
	"os"

	"github.com/blightveil/sclog/internal/parser"
)

// ParseLine classifies a single log line with a fresh session state and
// the default policy.
//
// The result holds zero or more events: at most one primary event, then
// any door change and zone alert derived from the same line. A line that
// matches nothing yields nil.
//
// Example:
//
//	line := "<2024-05-01T20:10:11.123Z> CActor::Kill: 'PlayerA' [1] in zone 'OOC_Stanton_2a' killed by 'PlayerB' [2] using 'Weapon_X' [cls] with damage type 'Bullet'"
//	for _, ev := range sclog.ParseLine(line) {
//	    fmt.Printf("%s killed %s\n", ev.Killer, ev.Victim)
//	}
func ParseLine(line string) []Event {
	return parser.New(DefaultPolicy()).Classify(line, parser.NewState(nil))
}

// ParseFile classifies a Game.log file and returns an iterator over events.
// The whole file is one session: door states carry across lines exactly as
// they would while monitoring. The file is opened lazily on first iteration,
// so the returned iterator is cheap to create but must be consumed to
// release resources.
//
// The iterator yields (Event, error) pairs. When an error occurs:
//   - File open errors: yields (Event{}, error) once and stops
//   - Read errors (e.g. a line too long): yields (Event{}, *ParseError) and stops
//   - Context cancellation: yields (Event{}, ctx.Err()) and stops
//
// Example:
//
//	for ev, err := range sclog.ParseFile(ctx, "Game.log") {
//	    if err != nil {
//	        log.Printf("error: %v", err)
//	        break
//	    }
//	    fmt.Printf("event: %+v\n", ev)
//	}
func ParseFile(ctx context.Context, path string, opts ...ParseOption) iter.Seq2[Event, error] {
	if path == "" {
		return func(yield func(Event, error) bool) {
			yield(Event{}, errors.New("sclog: path required"))
		}
	}

	cfg := applyParseOptions(opts)

	return func(yield func(Event, error) bool) {
		file, err := os.Open(path)
		if err != nil {
			yield(Event{}, err)
			return
		}
		defer file.Close()

		classifier := parser.New(cfg.policy)
		state := parser.NewState(cfg.zones)

		scanner := bufio.NewScanner(file)
		// Increase buffer size for long lines
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 512*1024)

		lineNo := 0
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				yield(Event{}, err)
				return
			}
			lineNo++

			line := trimCR(scanner.Text())
			evs := classifier.Classify(line, state)
			if len(evs) == 0 && cfg.includeUnmatch && !classifier.Match(line) {
				evs = append(evs, Event{Type: EventUnmatched, Timestamp: parser.Timestamp(line), RawLine: line})
			}

			for _, ev := range evs {
				if !cfg.filter.Allows(ev.Type) {
					continue
				}
				if !inTimeRange(ev.Timestamp, cfg.since, cfg.until) {
					continue
				}
				if cfg.includeRawLine {
					ev.RawLine = line
				}
				if !yield(ev, nil) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			yield(Event{}, &ParseError{Path: path, Line: lineNo + 1, Err: err})
		}
	}
}

// ParseFileAll is a convenience function that parses a log file and collects
// all events into a slice. Stops on first error and returns events collected so far.
func ParseFileAll(ctx context.Context, path string, opts ...ParseOption) ([]Event, error) {
	events := make([]Event, 0, 256)
	for ev, err := range ParseFile(ctx, path, opts...) {
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func trimCR(line string) string {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}
