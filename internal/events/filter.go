package events

import (
	"fmt"
	"strings"
)

// Filter selects which events reach the aggregator and renderers. Both
// criteria are exact, case-sensitive string matches; an empty criterion
// matches everything. Filtering is forward-only: changing the filter
// affects subsequent events, never already-buffered ones.
type Filter struct {
	// Source matches the event's emitting application name.
	Source string

	// Category matches the event type.
	Category string
}

// Matches reports whether the event passes the filter.
func (f Filter) Matches(e Event) bool {
	if f.Source != "" && e.Source != f.Source {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	return true
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.Source == "" && f.Category == ""
}

// String renders the filter in the prompt syntax accepted by ParseFilter.
func (f Filter) String() string {
	var parts []string
	if f.Source != "" {
		parts = append(parts, "app="+f.Source)
	}
	if f.Category != "" {
		parts = append(parts, "type="+f.Category)
	}
	return strings.Join(parts, " ")
}

// ParseFilter parses the interactive filter syntax: space-separated
// app=NAME and type=CATEGORY tokens in any order. An empty expression
// yields the zero filter (match everything). Later tokens override
// earlier ones for the same key.
func ParseFilter(expr string) (Filter, error) {
	var f Filter
	for _, tok := range strings.Fields(expr) {
		key, val, ok := strings.Cut(tok, "=")
		if !ok {
			return Filter{}, fmt.Errorf("malformed filter term %q (want app=NAME or type=CATEGORY)", tok)
		}
		switch key {
		case "app":
			f.Source = val
		case "type":
			f.Category = val
		default:
			return Filter{}, fmt.Errorf("unknown filter key %q (want app or type)", key)
		}
	}
	return f, nil
}
