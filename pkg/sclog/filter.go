package sclog

import "time"

// compiledFilter holds pre-compiled filter configuration for efficient event filtering.
// It is created from the include/exclude options during monitor/parser initialization.
type compiledFilter struct {
	include map[EventType]struct{}
	exclude map[EventType]struct{}
}

// newCompiledFilter creates a new compiledFilter from include and exclude slices.
// Returns nil if both slices are empty (no filtering needed).
func newCompiledFilter(include, exclude []EventType) *compiledFilter {
	if len(include) == 0 && len(exclude) == 0 {
		return nil
	}
	return &compiledFilter{
		include: typeSet(include),
		exclude: typeSet(exclude),
	}
}

func typeSet(types []EventType) map[EventType]struct{} {
	if len(types) == 0 {
		return nil
	}
	m := make(map[EventType]struct{}, len(types))
	for _, t := range types {
		m[t] = struct{}{}
	}
	return m
}

// Allows returns true if the given event type passes the filter.
// If include is non-empty, only types in include are allowed.
// Types in exclude are always rejected (exclude takes precedence).
func (f *compiledFilter) Allows(t EventType) bool {
	if f == nil {
		return true
	}

	if len(f.include) > 0 {
		if _, ok := f.include[t]; !ok {
			return false
		}
	}

	if _, ok := f.exclude[t]; ok {
		return false
	}
	return true
}

// inTimeRange reports whether ts falls in [since, until).
// A zero ts (line without timestamp) always passes.
func inTimeRange(ts, since, until time.Time) bool {
	if ts.IsZero() {
		return true
	}
	if !since.IsZero() && ts.Before(since) {
		return false
	}
	if !until.IsZero() && !ts.Before(until) {
		return false
	}
	return true
}
