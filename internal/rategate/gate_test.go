package rategate

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New(0, time.Second); err == nil {
		t.Error("expected error for zero capacity")
	}
	if _, err := New(5, 0); err == nil {
		t.Error("expected error for zero window")
	}
}

func TestTryAcquire_CapacityExhaustion(t *testing.T) {
	g, err := New(3, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if !g.TryAcquire() {
			t.Fatalf("acquire %d should succeed", i+1)
		}
	}
	if g.TryAcquire() {
		t.Error("4th acquire within window should fail")
	}

	st := g.Stats()
	if st.TotalGranted != 3 {
		t.Errorf("granted = %d, want 3", st.TotalGranted)
	}
	if st.Occupancy != 3 {
		t.Errorf("occupancy = %d, want 3", st.Occupancy)
	}
}

func TestTryAcquire_WindowExpiry(t *testing.T) {
	g, err := New(2, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	if !g.TryAcquire() || !g.TryAcquire() {
		t.Fatal("initial acquires should succeed")
	}
	if g.TryAcquire() {
		t.Fatal("over-capacity acquire should fail")
	}

	time.Sleep(60 * time.Millisecond)
	if !g.TryAcquire() {
		t.Error("acquire after window expiry should succeed")
	}
}

func TestTryAcquire_BoundaryTimestampStillCounts(t *testing.T) {
	g, err := New(1, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	base := time.Unix(1000, 0)
	clock := base
	g.now = func() time.Time { return clock }

	if !g.TryAcquire() {
		t.Fatal("first acquire should succeed")
	}

	// Exactly one window later the original grant sits exactly at the
	// cutoff and must still occupy its slot.
	clock = base.Add(time.Second)
	if g.TryAcquire() {
		t.Error("grant exactly at cutoff must still occupy the window")
	}

	clock = base.Add(time.Second + time.Nanosecond)
	if !g.TryAcquire() {
		t.Error("grant strictly past cutoff should be purged")
	}
}

func TestAcquire_BlocksThenGrants(t *testing.T) {
	g, err := New(1, 40*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	if !g.TryAcquire() {
		t.Fatal("seed acquire failed")
	}

	start := time.Now()
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("blocking acquire failed: %v", err)
	}
	if waited := time.Since(start); waited < 20*time.Millisecond {
		t.Errorf("expected to wait for window, waited %v", waited)
	}

	st := g.Stats()
	if st.Delayed != 1 {
		t.Errorf("delayed = %d, want 1", st.Delayed)
	}
	if st.TotalDelay <= 0 {
		t.Error("total delay should be positive")
	}
}

func TestAcquire_TimeoutViaContext(t *testing.T) {
	g, err := New(1, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !g.TryAcquire() {
		t.Fatal("seed acquire failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := g.Acquire(ctx); err == nil {
		t.Error("expected timeout error")
	}
}

func TestAcquire_ConcurrentGoroutines(t *testing.T) {
	g, err := New(5, 30*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Acquire(context.Background()); err != nil {
				t.Errorf("acquire failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if st := g.Stats(); st.TotalGranted != 20 {
		t.Errorf("granted = %d, want 20", st.TotalGranted)
	}
}

func TestReset(t *testing.T) {
	g, err := New(2, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	g.TryAcquire()
	g.TryAcquire()
	g.Reset()

	st := g.Stats()
	if st.TotalGranted != 0 || st.Occupancy != 0 {
		t.Errorf("reset left state behind: %+v", st)
	}
	if !g.TryAcquire() {
		t.Error("acquire after reset should succeed")
	}
}

func TestAdaptive_ThrottleShrinksAndClearsWindow(t *testing.T) {
	a, err := NewAdaptive(10, time.Second, AdaptiveConfig{Floor: 2, BackoffFactor: 0.5})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		if !a.TryAcquire() {
			t.Fatalf("seed acquire %d failed", i)
		}
	}

	a.RecordThrottle()
	if got := a.Capacity(); got != 5 {
		t.Errorf("capacity after throttle = %d, want 5", got)
	}
	// Window cleared: the shrunk capacity is immediately usable.
	if !a.TryAcquire() {
		t.Error("acquire after backoff should succeed on a cleared window")
	}

	// Repeated throttles bottom out at the floor.
	a.RecordThrottle()
	a.RecordThrottle()
	a.RecordThrottle()
	if got := a.Capacity(); got != 2 {
		t.Errorf("capacity should not sink below floor, got %d", got)
	}
}

func TestAdaptive_RecoveryAfterConsecutiveSuccesses(t *testing.T) {
	a, err := NewAdaptive(10, time.Second, AdaptiveConfig{
		Floor:             1,
		BackoffFactor:     0.5,
		RecoveryRate:      0.5,
		RecoveryThreshold: 3,
	})
	if err != nil {
		t.Fatal(err)
	}

	a.RecordThrottle()
	if got := a.Capacity(); got != 5 {
		t.Fatalf("capacity after throttle = %d, want 5", got)
	}

	// Two successes: below the threshold, no change.
	a.RecordSuccess()
	a.RecordSuccess()
	if got := a.Capacity(); got != 5 {
		t.Errorf("capacity grew before threshold, got %d", got)
	}

	// Third success triggers one recovery step: 5 + (10-5)*0.5 + 1 = 8.
	a.RecordSuccess()
	if got := a.Capacity(); got != 8 {
		t.Errorf("capacity after recovery = %d, want 8", got)
	}

	// A throttle resets the success streak.
	a.RecordSuccess()
	a.RecordSuccess()
	a.RecordThrottle()
	a.RecordSuccess()
	a.RecordSuccess()
	a.RecordSuccess()
	if got := a.Capacity(); got > 8 {
		t.Errorf("streak should have reset on throttle, capacity %d", got)
	}
}

func TestAdaptive_NeverExceedsCeiling(t *testing.T) {
	a, err := NewAdaptive(4, time.Second, AdaptiveConfig{RecoveryThreshold: 1})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		a.RecordSuccess()
	}
	if got := a.Capacity(); got != 4 {
		t.Errorf("capacity exceeded ceiling: %d", got)
	}
}
