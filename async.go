package joysky

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

// dispatcher runs side-effect tasks off the request path on a bounded worker
// pool. Dispatch never returns an error and never blocks the caller
// indefinitely: when the queue is saturated, the task degrades to running
// synchronously on the caller. A failing or panicking task is logged and
// dropped; no task is ever retried.
type dispatcher struct {
	cfg       AsyncConfig
	metrics   *Metrics
	ch        chan task
	done      chan struct{}
	wg        sync.WaitGroup
	inline    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

type task struct {
	name string
	fn   func(ctx context.Context) error
}

func newDispatcher(cfg AsyncConfig, metrics *Metrics) *dispatcher {
	d := &dispatcher{
		cfg:     cfg,
		metrics: metrics,
		ch:      make(chan task, cfg.QueueSize),
		done:    make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}

	return d
}

func (d *dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case t := <-d.ch:
			d.execute(t)
		case <-d.done:
			for {
				select {
				case t := <-d.ch:
					d.execute(t)
				default:
					return
				}
			}
		}
	}
}

func (d *dispatcher) execute(t task) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.Inc(MetricAsyncTaskFailure)
			log.Printf("async task %s panicked: %v", t.name, r)
		}
	}()

	if err := t.fn(context.Background()); err != nil {
		d.metrics.Inc(MetricAsyncTaskFailure)
		log.Printf("async task %s failed: %v", t.name, err)
	}
}

// Dispatch submits fn for background execution. After Close, and whenever
// the queue is full, the task runs on the calling goroutine instead; either
// way the caller observes no error.
func (d *dispatcher) Dispatch(name string, fn func(ctx context.Context) error) {
	if d == nil || fn == nil {
		return
	}

	t := task{name: name, fn: fn}

	if d.closed.Load() {
		d.inline.Add(1)
		d.execute(t)
		return
	}

	select {
	case d.ch <- t:
		if d.closed.Load() {
			// Close raced the enqueue and may already have drained the
			// queue. Pull a task back out and run it here so nothing is
			// stranded.
			select {
			case late := <-d.ch:
				d.inline.Add(1)
				d.execute(late)
			default:
			}
		}
	default:
		// Saturated pool: degrade to synchronous execution rather than
		// dropping the task or blocking.
		d.inline.Add(1)
		d.execute(t)
	}
}

// InlineRuns reports how many tasks ran on the caller because the queue was
// saturated or the dispatcher was closed.
func (d *dispatcher) InlineRuns() uint64 {
	if d == nil {
		return 0
	}
	return d.inline.Load()
}

// Close drains the queue and stops the workers. Tasks dispatched afterwards
// run synchronously.
func (d *dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
		// Sweep anything enqueued between the workers' drain and now.
		for {
			select {
			case t := <-d.ch:
				d.execute(t)
			default:
				return
			}
		}
	})
}
