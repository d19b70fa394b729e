package otel

import "sync"

// DefaultRingSize is used when NewRingBuffer gets a non-positive size.
const DefaultRingSize = 512

// RingBuffer keeps the most recent events. Safe for concurrent use.
type RingBuffer struct {
	mu    sync.Mutex
	buf   []Event
	head  int // next write slot
	count int
}

// NewRingBuffer returns a buffer holding up to size events.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &RingBuffer{buf: make([]Event, size)}
}

// Push stores e, evicting the oldest event when full. Extra is copied so
// callers may reuse their map.
func (r *RingBuffer) Push(e Event) {
	if e.Extra != nil {
		cp := make(map[string]any, len(e.Extra))
		for k, v := range e.Extra {
			cp[k] = v
		}
		e.Extra = cp
	}
	r.mu.Lock()
	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	r.mu.Unlock()
}

// Last returns up to n of the newest events, oldest first.
func (r *RingBuffer) Last(n int) []Event {
	if n <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.count {
		n = r.count
	}
	if n == 0 {
		return nil
	}
	out := make([]Event, n)
	size := len(r.buf)
	start := (r.head - n + size) % size
	for i := 0; i < n; i++ {
		out[i] = r.buf[(start+i)%size]
	}
	return out
}

// Snapshot returns every buffered event, oldest first.
func (r *RingBuffer) Snapshot() []Event {
	return r.Last(r.Cap())
}

// Len returns the number of buffered events.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the buffer capacity.
func (r *RingBuffer) Cap() int {
	return len(r.buf)
}

// Stats counts buffered events by kind.
func (r *RingBuffer) Stats() map[EventKind]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[EventKind]int)
	size := len(r.buf)
	start := (r.head - r.count + size) % size
	for i := 0; i < r.count; i++ {
		counts[r.buf[(start+i)%size].Kind]++
	}
	return counts
}
