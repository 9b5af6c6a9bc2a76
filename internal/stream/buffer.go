package stream

import "sync"

// DefaultCapacity bounds the recent-events buffer.
const DefaultCapacity = 50

// Buffer holds the most recent events newest-first, strictly in arrival
// order. When full, the oldest entry is evicted; no reordering by event time
// is ever performed.
type Buffer struct {
	mu    sync.Mutex
	max   int
	items []ActivityEvent
}

// NewBuffer creates a buffer holding at most max events. Non-positive max
// falls back to DefaultCapacity.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultCapacity
	}
	return &Buffer{max: max}
}

// Push prepends evt and truncates to capacity.
func (b *Buffer) Push(evt ActivityEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := make([]ActivityEvent, 0, len(b.items)+1)
	items = append(items, evt)
	items = append(items, b.items...)
	if len(items) > b.max {
		items = items[:b.max]
	}
	b.items = items
}

// Snapshot returns a copy of the buffered events, newest first.
func (b *Buffer) Snapshot() []ActivityEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ActivityEvent, len(b.items))
	copy(out, b.items)
	return out
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Clear discards all buffered events.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
}
