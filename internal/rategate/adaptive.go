package rategate

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// AdaptiveConfig tunes how an AdaptiveGate reacts to upstream signals.
type AdaptiveConfig struct {
	// Floor is the minimum capacity backoff may reach. Default: 1.
	Floor int
	// BackoffFactor multiplies capacity on an upstream throttle signal.
	// Default: 0.5.
	BackoffFactor float64
	// RecoveryRate is the fraction of the remaining headroom restored per
	// recovery step. Default: 0.1.
	RecoveryRate float64
	// RecoveryThreshold is how many consecutive successes trigger one
	// recovery step. Default: 10.
	RecoveryThreshold int
}

func (c AdaptiveConfig) withDefaults() AdaptiveConfig {
	if c.Floor <= 0 {
		c.Floor = 1
	}
	if c.BackoffFactor <= 0 || c.BackoffFactor >= 1 {
		c.BackoffFactor = 0.5
	}
	if c.RecoveryRate <= 0 || c.RecoveryRate > 1 {
		c.RecoveryRate = 0.1
	}
	if c.RecoveryThreshold <= 0 {
		c.RecoveryThreshold = 10
	}
	return c
}

// AdaptiveGate wraps a Gate and shrinks capacity immediately when the
// upstream signals throttling, then grows it back toward the original
// ceiling after runs of successful responses.
type AdaptiveGate struct {
	gate    *Gate
	cfg     AdaptiveConfig
	initial int

	mu        sync.Mutex
	successes int
}

// NewAdaptive creates an AdaptiveGate over a fresh Gate.
func NewAdaptive(capacity int, window time.Duration, cfg AdaptiveConfig) (*AdaptiveGate, error) {
	cfg = cfg.withDefaults()
	if cfg.Floor > capacity {
		return nil, eris.Errorf("rategate: floor %d exceeds capacity %d", cfg.Floor, capacity)
	}
	g, err := New(capacity, window)
	if err != nil {
		return nil, err
	}
	return &AdaptiveGate{gate: g, cfg: cfg, initial: capacity}, nil
}

// Acquire blocks until a slot is granted or ctx is done.
func (a *AdaptiveGate) Acquire(ctx context.Context) error { return a.gate.Acquire(ctx) }

// TryAcquire attempts a non-blocking acquisition.
func (a *AdaptiveGate) TryAcquire() bool { return a.gate.TryAcquire() }

// Stats returns the underlying gate's counters.
func (a *AdaptiveGate) Stats() Stats { return a.gate.Stats() }

// Capacity returns the current (possibly backed-off) capacity.
func (a *AdaptiveGate) Capacity() int { return a.gate.Capacity() }

// RecordSuccess notes a successful upstream response. After
// RecoveryThreshold consecutive successes the capacity takes one step back
// toward the original ceiling.
func (a *AdaptiveGate) RecordSuccess() {
	a.mu.Lock()
	a.successes++
	if a.successes < a.cfg.RecoveryThreshold {
		a.mu.Unlock()
		return
	}
	a.successes = 0
	a.mu.Unlock()

	old, updated := a.gate.adjustCapacity(func(current int) int {
		if current >= a.initial {
			return current
		}
		next := current + int(float64(a.initial-current)*a.cfg.RecoveryRate) + 1
		if next > a.initial {
			next = a.initial
		}
		return next
	}, false)
	if updated != old {
		zap.L().Info("rate gate capacity recovered",
			zap.Int("capacity", updated),
			zap.Int("ceiling", a.initial),
		)
	}
}

// RecordThrottle notes an upstream rate-limit signal (403/429). Capacity
// shrinks by the backoff factor, never below the floor, and the window is
// cleared so the lower capacity takes effect immediately.
func (a *AdaptiveGate) RecordThrottle() {
	a.mu.Lock()
	a.successes = 0
	a.mu.Unlock()

	old, updated := a.gate.adjustCapacity(func(current int) int {
		next := int(float64(current) * a.cfg.BackoffFactor)
		if next < a.cfg.Floor {
			next = a.cfg.Floor
		}
		return next
	}, true)
	if updated < old {
		zap.L().Warn("rate gate backing off after throttle signal",
			zap.Int("capacity", updated),
			zap.Int("previous", old),
		)
	}
}
