// Package clock implements the simulated system clock. The clock counts
// seconds and nanoseconds of logical time, entirely decoupled from wall
// time; only the master advances it, everyone else reads it.
package clock

import (
	"fmt"
	"math/rand"
	"sync"
)

// NanosPerSecond is the carry boundary for the nanosecond field.
const NanosPerSecond = 1_000_000_000

// Time is an instant of simulated time. Nanos is always < NanosPerSecond.
type Time struct {
	Seconds uint32 `json:"seconds" yaml:"seconds"`
	Nanos   uint32 `json:"nanos" yaml:"nanos"`
}

// Add returns t advanced by ns nanoseconds, normalising the carry.
func (t Time) Add(ns uint32) Time {
	t.Nanos += ns
	if t.Nanos >= NanosPerSecond {
		t.Seconds += t.Nanos / NanosPerSecond
		t.Nanos %= NanosPerSecond
	}
	return t
}

// Compare returns -1, 0 or 1 as t is before, equal to or after o.
func (t Time) Compare(o Time) int {
	switch {
	case t.Seconds < o.Seconds:
		return -1
	case t.Seconds > o.Seconds:
		return 1
	case t.Nanos < o.Nanos:
		return -1
	case t.Nanos > o.Nanos:
		return 1
	}
	return 0
}

// Sub returns the elapsed time from o to t. o must not be after t.
func (t Time) Sub(o Time) Time {
	sec := t.Seconds - o.Seconds
	var ns uint32
	if t.Nanos < o.Nanos {
		sec--
		ns = NanosPerSecond + t.Nanos - o.Nanos
	} else {
		ns = t.Nanos - o.Nanos
	}
	return Time{Seconds: sec, Nanos: ns}
}

// TotalNanos flattens t to a nanosecond count.
func (t Time) TotalNanos() uint64 {
	return uint64(t.Seconds)*NanosPerSecond + uint64(t.Nanos)
}

// Milliseconds flattens t to a millisecond count.
func (t Time) Milliseconds() uint64 {
	return t.TotalNanos() / 1_000_000
}

// String renders the instant in the s:ns form used throughout the event log.
func (t Time) String() string {
	return fmt.Sprintf("%d:%d", t.Seconds, t.Nanos)
}

// Clock is the shared simulated clock. Advance is reserved for the master;
// Now may be called from worker goroutines, so reads are guarded.
type Clock struct {
	mu  sync.RWMutex
	cur Time
}

// New returns a clock at 0:0.
func New() *Clock {
	return &Clock{}
}

// Now returns the current simulated time.
func (c *Clock) Now() Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// Advance moves the clock forward by ns nanoseconds and returns the new time.
func (c *Clock) Advance(ns uint32) Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(ns)
	return c.cur
}

// Tick increment bounds for one master iteration, in nanoseconds.
const (
	minTick  = 100
	tickSpan = 1000
)

// TickSource draws the per-iteration clock increment in [100, 1099] ns from
// a seeded generator, so a run is reproducible under a fixed seed.
type TickSource struct {
	rnd *rand.Rand
}

// NewTickSource returns a tick source seeded with seed.
func NewTickSource(seed int64) *TickSource {
	return &TickSource{rnd: rand.New(rand.NewSource(seed))}
}

// Next returns the next increment.
func (s *TickSource) Next() uint32 {
	return minTick + uint32(s.rnd.Intn(tickSpan))
}
