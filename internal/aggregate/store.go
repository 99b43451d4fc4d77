// Package aggregate maintains the live view of the event stream: running
// totals by category and by source/agent, plus a bounded window of the
// most recent events. A single Store serializes all mutation; readers get
// deep-copied snapshots and never observe partial updates.
package aggregate

import (
	"sync"

	"github.com/nixlim/agentstream/internal/events"
)

// DefaultWindow is the recent-event window size used when the caller does
// not override it.
const DefaultWindow = 500

// seenLimit bounds the sequence-id memory used to de-duplicate events
// re-delivered across reconnects. Once full, the oldest remembered id is
// forgotten.
const seenLimit = 4096

// Listener is a callback invoked after an event has been accepted into
// the store. Listeners run synchronously outside the store lock and may
// call Snapshot, but must not block for long: they run on the ingestion
// path.
type Listener func(e events.Event)

// Snapshot is a point-in-time copy of the aggregate state. It shares no
// memory with the Store and stays valid while ingestion continues.
type Snapshot struct {
	// Total counts every accepted event, including ones already evicted
	// from the recent window.
	Total int64

	// ByCategory counts accepted events per category.
	ByCategory map[string]int64

	// BySource counts accepted events per source, split by agent type.
	BySource map[string]map[string]int64

	// Recent holds the windowed events in arrival order (oldest first).
	Recent []events.Event

	// Window is the configured recent-window capacity.
	Window int
}

// Store accumulates events into totals and a recent window.
type Store struct {
	mu         sync.RWMutex
	ring       *Ring
	total      int64
	byCategory map[string]int64
	bySource   map[string]map[string]int64
	seen       map[int64]struct{}
	seenOrder  []int64
	listeners  []Listener
}

// New creates an empty Store with the given recent-window size. Sizes
// below 1 fall back to DefaultWindow.
func New(window int) *Store {
	if window < 1 {
		window = DefaultWindow
	}
	return &Store{
		ring:       NewRing(window),
		byCategory: make(map[string]int64),
		bySource:   make(map[string]map[string]int64),
		seen:       make(map[int64]struct{}),
	}
}

// OnEvent registers a listener that is called after every accepted event.
func (s *Store) OnEvent(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Accept folds one event into the aggregate. It returns false for a
// duplicate (an event whose sequence id was already counted), in which
// case nothing changes. Events without a sequence id are always counted,
// so a reconnect backfill of id-less events double-counts them.
func (s *Store) Accept(e events.Event) bool {
	s.mu.Lock()

	if e.HasSeq {
		if _, dup := s.seen[e.Seq]; dup {
			s.mu.Unlock()
			return false
		}
		s.remember(e.Seq)
	}

	s.ring.Add(e)
	s.total++
	s.byCategory[e.Category]++
	agents, ok := s.bySource[e.Source]
	if !ok {
		agents = make(map[string]int64)
		s.bySource[e.Source] = agents
	}
	agents[e.AgentType()]++

	// Snapshot listeners while holding the lock.
	listeners := s.listeners

	s.mu.Unlock()

	// Notify listeners outside the lock to prevent deadlocks.
	for _, fn := range listeners {
		fn(e)
	}
	return true
}

// remember records a sequence id, evicting the oldest once seenLimit is
// reached. Caller must hold s.mu.
func (s *Store) remember(seq int64) {
	if len(s.seenOrder) >= seenLimit {
		delete(s.seen, s.seenOrder[0])
		s.seenOrder = s.seenOrder[1:]
	}
	s.seen[seq] = struct{}{}
	s.seenOrder = append(s.seenOrder, seq)
}

// Total returns the number of accepted events.
func (s *Store) Total() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Snapshot returns a deep copy of the current aggregate state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Total:      s.total,
		ByCategory: make(map[string]int64, len(s.byCategory)),
		BySource:   make(map[string]map[string]int64, len(s.bySource)),
		Recent:     s.ring.List(),
		Window:     s.ring.Cap(),
	}
	for k, v := range s.byCategory {
		snap.ByCategory[k] = v
	}
	for src, agents := range s.bySource {
		cp := make(map[string]int64, len(agents))
		for agent, n := range agents {
			cp[agent] = n
		}
		snap.BySource[src] = cp
	}
	return snap
}
