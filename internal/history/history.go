// Package history provides the bounded sample FIFO of the simulated sensor
// and a display trend with min/peak/avg statistics.
package history

import (
	"github.com/luki/simtemp/internal/sample"
)

// DefaultCapacity is the number of samples the device buffers.
const DefaultCapacity = 256

// Ring is a fixed-capacity FIFO of samples. When full, a push evicts the
// oldest sample. Ring is not safe for concurrent use; the device lock
// guards it.
type Ring struct {
	buf   []sample.Sample
	start int // index of the oldest sample
	count int
}

// NewRing creates a ring holding at most capacity samples.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		panic("history: ring capacity must be positive")
	}
	return &Ring{buf: make([]sample.Sample, capacity)}
}

// Push appends s. It reports whether the oldest sample was evicted to make
// room.
func (r *Ring) Push(s sample.Sample) (evicted bool) {
	if r.count == len(r.buf) {
		r.buf[r.start] = sample.Sample{}
		r.start = (r.start + 1) % len(r.buf)
		r.count--
		evicted = true
	}
	r.buf[(r.start+r.count)%len(r.buf)] = s
	r.count++
	return evicted
}

// Pop removes and returns the oldest sample. ok is false if the ring is
// empty.
func (r *Ring) Pop() (s sample.Sample, ok bool) {
	if r.count == 0 {
		return s, false
	}
	s = r.buf[r.start]
	r.buf[r.start] = sample.Sample{}
	r.start = (r.start + 1) % len(r.buf)
	r.count--
	return s, true
}

// IsEmpty reports whether the ring holds no samples.
func (r *Ring) IsEmpty() bool { return r.count == 0 }

// IsFull reports whether the next push evicts.
func (r *Ring) IsFull() bool { return r.count == len(r.buf) }

// Len returns the number of buffered samples.
func (r *Ring) Len() int { return r.count }

// Cap returns the fixed capacity.
func (r *Ring) Cap() int { return len(r.buf) }
