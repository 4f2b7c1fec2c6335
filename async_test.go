package joysky

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcherRunsTasksInBackground(t *testing.T) {
	d := newDispatcher(AsyncConfig{Workers: 2, QueueSize: 16}, nil)

	var ran atomic.Int64
	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		d.Dispatch("t", func(context.Context) error {
			defer wg.Done()
			ran.Add(1)
			return nil
		})
	}
	wg.Wait()
	d.Close()

	if got := ran.Load(); got != 10 {
		t.Fatalf("ran %d tasks, want 10", got)
	}
}

func TestDispatcherCloseDrainsQueue(t *testing.T) {
	d := newDispatcher(AsyncConfig{Workers: 1, QueueSize: 64}, nil)

	var ran atomic.Int64
	for i := 0; i < 50; i++ {
		d.Dispatch("t", func(context.Context) error {
			ran.Add(1)
			return nil
		})
	}
	d.Close()

	if got := ran.Load(); got != 50 {
		t.Fatalf("ran %d tasks after Close, want 50", got)
	}
}

func TestDispatcherRunsOnCallerWhenSaturated(t *testing.T) {
	d := newDispatcher(AsyncConfig{Workers: 1, QueueSize: 1}, nil)
	defer d.Close()

	block := make(chan struct{})
	started := make(chan struct{})

	// Occupy the single worker.
	d.Dispatch("blocker", func(context.Context) error {
		close(started)
		<-block
		return nil
	})
	<-started
	// Fill the queue.
	d.Dispatch("queued", func(context.Context) error { return nil })

	// Queue full: this one must run synchronously on the caller.
	var inline atomic.Bool
	d.Dispatch("overflow", func(context.Context) error {
		inline.Store(true)
		return nil
	})

	if !inline.Load() {
		t.Fatal("saturated dispatch should have run on the caller")
	}
	if d.InlineRuns() != 1 {
		t.Fatalf("InlineRuns = %d, want 1", d.InlineRuns())
	}

	close(block)
}

func TestDispatcherSwallowsErrorsAndPanics(t *testing.T) {
	metrics := NewMetrics(MetricsConfig{Enabled: true})
	d := newDispatcher(AsyncConfig{Workers: 1, QueueSize: 4}, metrics)

	d.Dispatch("failing", func(context.Context) error {
		return errors.New("boom")
	})
	d.Dispatch("panicking", func(context.Context) error {
		panic("boom")
	})
	d.Close()

	if got := metrics.Value(MetricAsyncTaskFailure); got != 2 {
		t.Fatalf("failure counter = %d, want 2", got)
	}
}

func TestDispatcherRunsSynchronouslyAfterClose(t *testing.T) {
	d := newDispatcher(AsyncConfig{Workers: 1, QueueSize: 4}, nil)
	d.Close()

	done := make(chan struct{})
	d.Dispatch("late", func(context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("post-Close dispatch should have run synchronously")
	}
	if d.InlineRuns() != 1 {
		t.Fatalf("InlineRuns = %d, want 1 for the closed path", d.InlineRuns())
	}
}

func TestDispatcherCloseDoesNotStrandConcurrentDispatch(t *testing.T) {
	d := newDispatcher(AsyncConfig{Workers: 2, QueueSize: 8}, nil)

	const n = 64
	var ran atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			d.Dispatch("t", func(context.Context) error {
				ran.Add(1)
				return nil
			})
		}()
	}

	close(start)
	d.Close()
	wg.Wait()

	// Every task must have executed: on a worker, during Close's drain, or
	// on its caller. None may be left sitting in the dead queue.
	if got := ran.Load(); got != n {
		t.Fatalf("ran %d tasks, want %d", got, n)
	}
}
