package aggregate

import "github.com/nixlim/agentstream/internal/events"

// Ring is a fixed-capacity buffer of the most recent events. When full,
// adding evicts the oldest entry. Ring does no locking of its own; the
// owning Store serializes all access.
type Ring struct {
	items []events.Event
	cap   int
	head  int // index of the oldest element
	count int // number of elements currently stored
}

// NewRing creates a Ring with the given capacity. Capacity must be at
// least 1; smaller values are clamped.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		items: make([]events.Event, capacity),
		cap:   capacity,
	}
}

// Add inserts an event. If the ring is full, the oldest event is
// overwritten.
func (r *Ring) Add(e events.Event) {
	writePos := (r.head + r.count) % r.cap
	if r.count == r.cap {
		// Ring is full; overwrite oldest and advance head.
		r.items[r.head] = e
		r.head = (r.head + 1) % r.cap
	} else {
		r.items[writePos] = e
		r.count++
	}
}

// List returns the buffered events in arrival order (oldest first).
func (r *Ring) List() []events.Event {
	if r.count == 0 {
		return nil
	}
	result := make([]events.Event, r.count)
	for i := 0; i < r.count; i++ {
		result[i] = r.items[(r.head+i)%r.cap]
	}
	return result
}

// Len returns the number of events currently buffered.
func (r *Ring) Len() int { return r.count }

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return r.cap }
