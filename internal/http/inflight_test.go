package http

import (
	"context"
	"sync"
	"testing"
	"time"
)

// TestInFlightTracker_Count verifies the counter follows request start and finish.
func TestInFlightTracker_Count(t *testing.T) {
	var tracker InFlightTracker
	steps := []struct {
		op   func()
		want int64
	}{
		{tracker.Increment, 1},
		{tracker.Increment, 2},
		{tracker.Decrement, 1},
		{tracker.Decrement, 0},
	}
	for i, s := range steps {
		s.op()
		if got := tracker.Count(); got != s.want {
			t.Errorf("step %d: Count() = %d, want %d", i, got, s.want)
		}
	}
}

// TestInFlightTracker_ConcurrentRequests verifies the count settles at zero
// after many goroutines start and finish requests together.
func TestInFlightTracker_ConcurrentRequests(t *testing.T) {
	var tracker InFlightTracker
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				tracker.Increment()
				tracker.Decrement()
			}
		}()
	}
	wg.Wait()
	if got := tracker.Count(); got != 0 {
		t.Errorf("Count() = %d after balanced calls, want 0", got)
	}
}

// TestInFlightTracker_WaitForZero_Drains verifies the wait ends once the last request finishes.
func TestInFlightTracker_WaitForZero_Drains(t *testing.T) {
	var tracker InFlightTracker
	tracker.Increment()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- tracker.WaitForZero(ctx, 2*time.Millisecond) }()

	time.Sleep(10 * time.Millisecond)
	tracker.Decrement()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("WaitForZero() = %v, want nil", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("WaitForZero still blocked after the count reached zero")
	}
}

// TestInFlightTracker_WaitForZero_IdleIgnoresDoneContext verifies an idle
// tracker reports drained even when the shutdown deadline already passed.
func TestInFlightTracker_WaitForZero_IdleIgnoresDoneContext(t *testing.T) {
	var tracker InFlightTracker
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tracker.WaitForZero(ctx, time.Hour); err != nil {
		t.Errorf("WaitForZero() = %v, want nil", err)
	}
}

// TestInFlightTracker_WaitForZero_Deadline verifies busy trackers give up with the context error.
func TestInFlightTracker_WaitForZero_Deadline(t *testing.T) {
	var tracker InFlightTracker
	tracker.Increment()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()

	if err := tracker.WaitForZero(ctx, 5*time.Millisecond); err != context.DeadlineExceeded {
		t.Errorf("WaitForZero() = %v, want DeadlineExceeded", err)
	}
	if got := tracker.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}
