package streamgraph

import (
	"context"
	"sync"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// workerPool provides bounded parallel execution of pipeline tasks using a
// semaphore: a fixed number of slots gate concurrent goroutines while
// every submitted task still runs (it just may have to wait for a slot).
// Tasks are arbitrary scheduled component invocations, so Submit takes a
// plain closure.
type workerPool struct {
	sem   chan struct{}
	wg    sync.WaitGroup
	clock clockz.Clock
	mu    sync.RWMutex
}

// newWorkerPool creates a workerPool with the given number of slots. A
// non-positive count falls back to 1.
func newWorkerPool(workers int) *workerPool {
	if workers <= 0 {
		workers = 1
	}
	return &workerPool{
		sem:   make(chan struct{}, workers),
		clock: clockz.RealClock,
	}
}

// Submit schedules fn to run on the pool and returns at once: fn runs on
// its own goroutine as soon as a slot is free. If ctx is cancelled while
// that goroutine is still waiting for a slot, fn is not run. Callers that
// need to wait for all outstanding work should call Wait.
func (p *workerPool) Submit(ctx context.Context, fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		workerCount := cap(p.sem)
		active := len(p.sem)
		if active >= workerCount {
			clock := p.getClock()
			capitan.Warn(ctx, SignalWorkerPoolSaturated,
				FieldWorkerCount.Field(workerCount),
				FieldActiveWorkers.Field(active),
				FieldTimestamp.Field(float64(clock.Now().Unix())),
			)
		}

		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		case <-ctx.Done():
			return
		}

		fn()
	}()
}

// Wait blocks until every task submitted so far has returned. It's used by
// tests (AssertClean-style checks) and by graceful-shutdown paths; the
// engine itself never waits on the pool mid-invocation.
func (p *workerPool) Wait() {
	p.wg.Wait()
}

func (p *workerPool) getClock() clockz.Clock {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return getClock(p.clock)
}

// WithClock installs a custom clock, for tests that need deterministic
// timestamps on saturation signals.
func (p *workerPool) WithClock(clock clockz.Clock) *workerPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = clock
	return p
}
