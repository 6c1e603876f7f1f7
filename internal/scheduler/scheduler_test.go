package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_InvalidArgs(t *testing.T) {
	t.Parallel()

	t.Run("interval must be > 0", func(t *testing.T) {
		t.Parallel()

		s, err := New(0, func(context.Context) {})
		if err == nil {
			t.Fatalf("expected error, got nil")
		}
		if s != nil {
			t.Fatalf("expected nil scheduler, got %#v", s)
		}
	})

	t.Run("passFn must not be nil", func(t *testing.T) {
		t.Parallel()

		s, err := New(100*time.Millisecond, nil)
		if err == nil {
			t.Fatalf("expected error, got nil")
		}
		if s != nil {
			t.Fatalf("expected nil scheduler, got %#v", s)
		}
	})
}

func TestScheduler_StartStop_Basics(t *testing.T) {
	var passes atomic.Int64

	s, err := New(10*time.Millisecond, func(context.Context) {
		passes.Add(1)
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if s.IsRunning() {
		t.Fatalf("expected scheduler not running initially")
	}

	if ok := s.Start(); !ok {
		t.Fatalf("expected Start() true on first call")
	}
	if !s.IsRunning() {
		t.Fatalf("expected scheduler running after Start()")
	}

	// Start should fail when already running.
	if ok := s.Start(); ok {
		t.Fatalf("expected Start() false when already running")
	}

	// There is an immediate pass on Start().
	waitForAtLeast(t, &passes, 1, 500*time.Millisecond)

	if ok := s.Stop(); !ok {
		t.Fatalf("expected Stop() true on first call")
	}
	if s.IsRunning() {
		t.Fatalf("expected scheduler not running after Stop()")
	}

	if ok := s.Stop(); ok {
		t.Fatalf("expected Stop() false when already stopped")
	}
}

func TestScheduler_NoPassesAfterStop(t *testing.T) {
	var passes atomic.Int64

	s, err := New(10*time.Millisecond, func(context.Context) {
		passes.Add(1)
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if ok := s.Start(); !ok {
		t.Fatalf("expected Start() true")
	}

	waitForAtLeast(t, &passes, 2, 750*time.Millisecond)
	beforeStop := passes.Load()

	if ok := s.Stop(); !ok {
		t.Fatalf("expected Stop() true")
	}

	time.Sleep(100 * time.Millisecond)
	afterStop := passes.Load()

	if afterStop != beforeStop {
		t.Fatalf("expected no passes after Stop; before=%d after=%d", beforeStop, afterStop)
	}
}

func TestScheduler_ImmediatePassOnStart(t *testing.T) {
	var passes atomic.Int64

	// Large interval: only the immediate pass on Start() can fire.
	s, err := New(10*time.Second, func(context.Context) {
		passes.Add(1)
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if ok := s.Start(); !ok {
		t.Fatalf("expected Start() true")
	}
	defer s.Stop()

	waitForAtLeast(t, &passes, 1, 500*time.Millisecond)
}

func TestScheduler_PanicInPassIsRecoveredAndContinues(t *testing.T) {
	var passes atomic.Int64
	var panicked atomic.Bool

	s, err := New(10*time.Millisecond, func(context.Context) {
		if panicked.CompareAndSwap(false, true) {
			panic("boom")
		}
		passes.Add(1)
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if ok := s.Start(); !ok {
		t.Fatalf("expected Start() true")
	}
	defer s.Stop()

	// If the panic is recovered, the scheduler keeps ticking afterwards.
	waitForAtLeast(t, &passes, 1, 750*time.Millisecond)
}

func TestScheduler_PassReceivesCancelableContext(t *testing.T) {
	var capturedMu sync.Mutex
	var captured context.Context

	s, err := New(10*time.Millisecond, func(ctx context.Context) {
		capturedMu.Lock()
		if captured == nil {
			captured = ctx
		}
		capturedMu.Unlock()
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if ok := s.Start(); !ok {
		t.Fatalf("expected Start() true")
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		capturedMu.Lock()
		got := captured
		capturedMu.Unlock()

		if got != nil {
			break
		}
		if time.Now().After(deadline) {
			_ = s.Stop()
			t.Fatalf("did not capture pass context in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if ok := s.Stop(); !ok {
		t.Fatalf("expected Stop() true")
	}

	capturedMu.Lock()
	ctx := captured
	capturedMu.Unlock()

	select {
	case <-ctx.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("expected pass context to be canceled after Stop()")
	}
}

func TestScheduler_SnapshotCountsPasses(t *testing.T) {
	var passes atomic.Int64

	s, err := New(10*time.Millisecond, func(context.Context) {
		passes.Add(1)
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if st := s.Snapshot(); st.Passes != 0 || st.Overruns != 0 || st.LastPassAt != nil {
		t.Fatalf("expected zero snapshot before start, got %+v", st)
	}

	before := time.Now().UTC()
	if ok := s.Start(); !ok {
		t.Fatalf("expected Start() true")
	}

	waitForAtLeast(t, &passes, 2, 750*time.Millisecond)

	if ok := s.Stop(); !ok {
		t.Fatalf("expected Stop() true")
	}

	st := s.Snapshot()
	if st.Passes < 2 {
		t.Fatalf("expected at least 2 counted passes, got %d", st.Passes)
	}
	if st.Overruns != 0 {
		t.Fatalf("expected no overruns for a fast pass, got %d", st.Overruns)
	}
	if st.LastPassAt == nil || st.LastPassAt.Before(before) {
		t.Fatalf("expected LastPassAt after start time, got %v", st.LastPassAt)
	}
}

func TestScheduler_SnapshotCountsOverruns(t *testing.T) {
	s, err := New(5*time.Millisecond, func(context.Context) {
		time.Sleep(30 * time.Millisecond)
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if ok := s.Start(); !ok {
		t.Fatalf("expected Start() true")
	}

	deadline := time.Now().Add(750 * time.Millisecond)
	for s.Snapshot().Overruns < 1 {
		if time.Now().After(deadline) {
			_ = s.Stop()
			t.Fatalf("timeout waiting for an overrun, snapshot %+v", s.Snapshot())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if ok := s.Stop(); !ok {
		t.Fatalf("expected Stop() true")
	}
}

func TestScheduler_SnapshotCountsPanickingPasses(t *testing.T) {
	s, err := New(10*time.Second, func(context.Context) {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if ok := s.Start(); !ok {
		t.Fatalf("expected Start() true")
	}
	defer s.Stop()

	// The immediate pass panics; the snapshot must still record it.
	deadline := time.Now().Add(500 * time.Millisecond)
	for s.Snapshot().Passes < 1 {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for panicking pass to be counted")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// waitForAtLeast polls until passes >= n or fails the test after timeout.
func waitForAtLeast(t *testing.T, passes *atomic.Int64, n int64, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if passes.Load() >= n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for passes >= %d (got %d)", n, passes.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
