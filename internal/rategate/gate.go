// Package rategate implements a sliding-window rate limiter for outbound
// registry calls. Unlike a token bucket with refill, the gate tracks the
// timestamps of granted acquisitions over a trailing window, which is what
// the SEC's "no more than N requests per second" policy actually measures.
package rategate

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// Stats reports gate activity counters for observability.
type Stats struct {
	TotalGranted int           `json:"total_granted"`
	Delayed      int           `json:"delayed"`
	TotalDelay   time.Duration `json:"total_delay_ns"`
	Occupancy    int           `json:"occupancy"`
	Capacity     int           `json:"capacity"`
	LastGranted  time.Time     `json:"last_granted,omitempty"`
}

// Gate bounds acquisitions to at most capacity per trailing window. Safe for
// concurrent use.
type Gate struct {
	mu       sync.Mutex
	capacity int
	window   time.Duration
	grants   []time.Time

	totalGranted int
	delayed      int
	totalDelay   time.Duration
	lastGranted  time.Time

	now func() time.Time // test hook
}

// New creates a Gate allowing capacity acquisitions per window.
func New(capacity int, window time.Duration) (*Gate, error) {
	if capacity <= 0 {
		return nil, eris.Errorf("rategate: capacity must be positive, got %d", capacity)
	}
	if window <= 0 {
		return nil, eris.Errorf("rategate: window must be positive, got %v", window)
	}
	return &Gate{
		capacity: capacity,
		window:   window,
		now:      time.Now,
	}, nil
}

// purgeLocked drops grants that have left the trailing window. A grant
// exactly at the cutoff still occupies a slot.
func (g *Gate) purgeLocked(now time.Time) {
	cutoff := now.Add(-g.window)
	i := 0
	for i < len(g.grants) && g.grants[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		g.grants = append(g.grants[:0], g.grants[i:]...)
	}
}

// tryLocked grants a slot if one is free. Caller holds g.mu.
func (g *Gate) tryLocked(now time.Time) bool {
	g.purgeLocked(now)
	if len(g.grants) >= g.capacity {
		return false
	}
	g.grants = append(g.grants, now)
	g.totalGranted++
	g.lastGranted = now
	return true
}

// TryAcquire attempts a non-blocking acquisition. On failure it leaves no
// trace besides the lazy purge.
func (g *Gate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tryLocked(g.now())
}

// Acquire blocks until a slot is granted or ctx is done. The internal lock
// is released while sleeping and the window is re-evaluated from scratch on
// every wake, since capacity and occupancy may have changed concurrently.
func (g *Gate) Acquire(ctx context.Context) error {
	delayedOnce := false

	g.mu.Lock()
	for {
		now := g.now()
		if g.tryLocked(now) {
			g.mu.Unlock()
			return nil
		}

		// Next slot frees when the oldest grant leaves the window.
		wait := g.grants[0].Sub(now.Add(-g.window))
		if wait < 0 {
			wait = 0
		}
		if !delayedOnce {
			g.delayed++
			delayedOnce = true
		}
		g.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return eris.Wrap(ctx.Err(), "rategate: acquire")
		case <-timer.C:
		}

		g.mu.Lock()
		g.totalDelay += wait
	}
}

// Stats returns a snapshot of gate counters. Occupancy reflects the window
// after an up-to-date purge.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.purgeLocked(g.now())
	return Stats{
		TotalGranted: g.totalGranted,
		Delayed:      g.delayed,
		TotalDelay:   g.totalDelay,
		Occupancy:    len(g.grants),
		Capacity:     g.capacity,
		LastGranted:  g.lastGranted,
	}
}

// Reset clears the window and all counters.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.grants = g.grants[:0]
	g.totalGranted = 0
	g.delayed = 0
	g.totalDelay = 0
	g.lastGranted = time.Time{}
}

// Capacity returns the current capacity.
func (g *Gate) Capacity() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.capacity
}

// adjustCapacity applies fn to the current capacity, optionally clearing the
// window so the new capacity takes effect immediately.
func (g *Gate) adjustCapacity(fn func(current int) int, clearWindow bool) (old, updated int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	old = g.capacity
	g.capacity = fn(g.capacity)
	if g.capacity < 1 {
		g.capacity = 1
	}
	if clearWindow {
		g.grants = g.grants[:0]
	}
	return old, g.capacity
}
