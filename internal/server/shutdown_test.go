package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestHooksRunInPriorityOrder(t *testing.T) {
	h := NewShutdownHandler(&ShutdownConfig{Timeout: time.Second})

	var mu sync.Mutex
	var order []string
	record := func(name string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	h.RegisterHook("late", 90, record("late"))
	h.RegisterHook("early", 10, record("early"))
	h.RegisterHook("mid", 50, record("mid"))

	h.Start()
	h.Shutdown()
	if !h.WaitWithTimeout(2 * time.Second) {
		t.Fatal("shutdown did not complete")
	}

	want := []string{"early", "mid", "late"}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestFailingHookDoesNotStopOthers(t *testing.T) {
	h := NewShutdownHandler(&ShutdownConfig{Timeout: time.Second})

	var ran bool
	h.RegisterHook("broken", 10, func(ctx context.Context) error {
		return errors.New("boom")
	})
	h.RegisterHook("after", 20, func(ctx context.Context) error {
		ran = true
		return nil
	})

	h.Start()
	h.Shutdown()
	if !h.WaitWithTimeout(2 * time.Second) {
		t.Fatal("shutdown did not complete")
	}
	if !ran {
		t.Error("hook after the failing one did not run")
	}
}

func TestShutdownBeforeStartIsNoop(t *testing.T) {
	h := NewShutdownHandler(nil)
	h.Shutdown()
	if h.WaitWithTimeout(50 * time.Millisecond) {
		t.Error("shutdown completed without Start")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	h := NewShutdownHandler(&ShutdownConfig{Timeout: time.Second})

	var calls int
	var mu sync.Mutex
	h.RegisterHook("once", 10, func(ctx context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	h.Start()
	h.Shutdown()
	h.Shutdown()
	if !h.WaitWithTimeout(2 * time.Second) {
		t.Fatal("shutdown did not complete")
	}
	// Give any spurious second pass a chance to run.
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("hook ran %d times", calls)
	}
}

func TestPrebuiltHookPriorities(t *testing.T) {
	httpHook := HTTPServerShutdownHook("api", func(ctx context.Context) error { return nil })
	workerHook := TemporalWorkerShutdownHook(func() {})
	tracingHook := TracingShutdownHook(func(ctx context.Context) error { return nil })
	graphHook := GraphShutdownHook(func(ctx context.Context) error { return nil })
	vectorHook := VectorShutdownHook(func() error { return nil })

	if !(httpHook.Priority < workerHook.Priority &&
		workerHook.Priority < tracingHook.Priority &&
		tracingHook.Priority < graphHook.Priority) {
		t.Errorf("priorities out of order: http=%d worker=%d tracing=%d graph=%d",
			httpHook.Priority, workerHook.Priority, tracingHook.Priority, graphHook.Priority)
	}
	if vectorHook.Priority != graphHook.Priority {
		t.Errorf("store hooks should share a priority tier: %d vs %d",
			vectorHook.Priority, graphHook.Priority)
	}
}

func TestGracefulServerFlipsReadinessOnShutdown(t *testing.T) {
	g := NewGracefulServer(nil, &ShutdownConfig{Timeout: time.Second})
	g.Shutdown.Start()
	g.Health.SetReady(true)

	g.Shutdown.Shutdown()
	if !g.Shutdown.WaitWithTimeout(2 * time.Second) {
		t.Fatal("shutdown did not complete")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		g.Health.mu.RLock()
		ready := g.Health.ready
		g.Health.mu.RUnlock()
		if !ready {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("readiness not flipped on shutdown")
}
