package sim

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBarrierRunsActionOncePerGeneration(t *testing.T) {
	const parties = 4
	const generations = 5

	var boundaries atomic.Int64
	var inStep atomic.Int64
	b := NewBarrier(parties, func() {
		// Every party must be parked when the boundary runs.
		if got := inStep.Load(); got != 0 {
			t.Errorf("boundary ran with %d parties still stepping", got)
		}
		boundaries.Add(1)
	})

	var wg sync.WaitGroup
	for p := 0; p < parties; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for g := 0; g < generations; g++ {
				inStep.Add(1)
				time.Sleep(time.Millisecond)
				inStep.Add(-1)
				if err := b.Wait(); err != nil {
					t.Errorf("unexpected barrier error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := boundaries.Load(); got != generations {
		t.Fatalf("boundary ran %d times, want %d", got, generations)
	}
}

func TestBarrierAbortReleasesWaiters(t *testing.T) {
	b := NewBarrier(2, nil)
	boom := errors.New("setup failed")

	done := make(chan error, 1)
	go func() { done <- b.Wait() }()

	// Give the waiter time to park, then abort instead of arriving.
	time.Sleep(10 * time.Millisecond)
	b.Abort(boom)

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Fatalf("waiter got %v, want the abort error", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was not released by Abort")
	}

	// Later arrivals must not block either.
	if err := b.Wait(); !errors.Is(err, boom) {
		t.Fatalf("post-abort Wait got %v, want the abort error", err)
	}
}

func TestBarrierRetireTripsForRemaining(t *testing.T) {
	var boundaries atomic.Int64
	b := NewBarrier(2, func() { boundaries.Add(1) })

	done := make(chan error, 1)
	go func() { done <- b.Wait() }()

	time.Sleep(10 * time.Millisecond)
	b.Retire()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waiter got %v after Retire, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Retire left the last waiter blocked")
	}
	if got := boundaries.Load(); got != 1 {
		t.Fatalf("boundary ran %d times, want 1", got)
	}
}

func TestBarrierRetireLastParty(t *testing.T) {
	b := NewBarrier(1, nil)
	// Retiring the only party must not panic or trip anything.
	b.Retire()
	if err := b.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
