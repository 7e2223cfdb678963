package main

import (
	"fmt"
	"strings"

	"github.com/blightveil/sclog/pkg/sclog"
	"github.com/blightveil/sclog/pkg/sclog/event"
)

// ValidEventTypeNames returns a sorted list of valid event type names.
// Delegates to event.TypeNames() as the single source of truth.
func ValidEventTypeNames() []string {
	return event.TypeNames()
}

// NormalizeEventTypes converts CLI string values to sclog.EventType slice.
// It handles case-insensitivity, whitespace trimming, and duplicate removal.
func NormalizeEventTypes(values []string) ([]sclog.EventType, error) {
	if len(values) == 0 {
		return nil, nil
	}

	result := make([]sclog.EventType, 0, len(values))
	seen := make(map[sclog.EventType]struct{})

	for _, raw := range values {
		if strings.TrimSpace(raw) == "" {
			return nil, fmt.Errorf("empty event type provided (input: %q); valid types: %s", raw, strings.Join(ValidEventTypeNames(), ", "))
		}

		t, ok := event.ParseType(raw)
		if !ok {
			return nil, fmt.Errorf("unknown event type %q (valid: %s)", raw, strings.Join(ValidEventTypeNames(), ", "))
		}

		if _, dup := seen[t]; dup {
			continue // ignore duplicates silently
		}
		seen[t] = struct{}{}
		result = append(result, t)
	}

	return result, nil
}

// RejectOverlap returns an error if any event type is in both includes and excludes.
func RejectOverlap(includes, excludes []sclog.EventType) error {
	ex := make(map[sclog.EventType]struct{}, len(excludes))
	for _, t := range excludes {
		ex[t] = struct{}{}
	}
	for _, t := range includes {
		if _, ok := ex[t]; ok {
			return fmt.Errorf("event type %q cannot be both included and excluded", t)
		}
	}
	return nil
}

// resolveEventTypes merges flag values over the config file values and
// validates the result.
func resolveEventTypes(flagIncludes, flagExcludes, cfgIncludes, cfgExcludes []string) (includes, excludes []sclog.EventType, err error) {
	if len(flagIncludes) == 0 {
		flagIncludes = cfgIncludes
	}
	if len(flagExcludes) == 0 {
		flagExcludes = cfgExcludes
	}
	if includes, err = NormalizeEventTypes(flagIncludes); err != nil {
		return nil, nil, err
	}
	if excludes, err = NormalizeEventTypes(flagExcludes); err != nil {
		return nil, nil, err
	}
	if err := RejectOverlap(includes, excludes); err != nil {
		return nil, nil, err
	}
	return includes, excludes, nil
}
