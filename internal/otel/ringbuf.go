package otel

import (
	"maps"
	"sync"
)

// DefaultRingSize is the capacity used when NewRingBuffer gets a
// non-positive size.
const DefaultRingSize = 512

// RingBuffer keeps the most recent events in memory for /api/events and
// tests. Safe for concurrent use.
type RingBuffer struct {
	mu     sync.Mutex
	events []Event
	next   int    // slot the next Push overwrites once full
	total  uint64 // events ever pushed
}

// NewRingBuffer returns an empty buffer holding at most size events.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &RingBuffer{events: make([]Event, 0, size)}
}

// Push appends e, evicting the oldest event when the buffer is full.
// Extra is cloned so later mutation by the caller cannot leak in.
func (r *RingBuffer) Push(e Event) {
	e.Extra = maps.Clone(e.Extra)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	if len(r.events) < cap(r.events) {
		r.events = append(r.events, e)
		return
	}
	r.events[r.next] = e
	r.next = (r.next + 1) % len(r.events)
}

// Snapshot copies out every buffered event, oldest first.
func (r *RingBuffer) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ordered()
}

// Recent applies f to the buffered events.
func (r *RingBuffer) Recent(f Filter) []Event {
	return f.Select(r.Snapshot())
}

// Counts tallies buffered events by kind.
func (r *RingBuffer) Counts() map[EventKind]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[EventKind]int)
	for _, e := range r.events {
		counts[e.Kind]++
	}
	return counts
}

// Len returns the number of buffered events.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Cap returns the buffer capacity.
func (r *RingBuffer) Cap() int {
	return cap(r.events)
}

// Total returns how many events were ever pushed, including evicted ones.
func (r *RingBuffer) Total() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// ordered must be called with mu held.
func (r *RingBuffer) ordered() []Event {
	if len(r.events) == 0 {
		return nil
	}
	out := make([]Event, 0, len(r.events))
	out = append(out, r.events[r.next:]...)
	return append(out, r.events[:r.next]...)
}
