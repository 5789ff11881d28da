package workerpool

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// GoroutinePool spawns n long-lived worker goroutines reading from a
// task channel, synchronized with sync.WaitGroup for WaitDone, grounded
// in the teacher's Search/SearchMultiThreaded goroutine+sync.WaitGroup
// dispatch pattern.
type GoroutinePool struct {
	tasks chan func()
	wg    sync.WaitGroup
	quit  chan struct{}
	once  sync.Once
}

// NewGoroutinePool starts n worker goroutines. n is clamped to at least 1.
func NewGoroutinePool(n int) *GoroutinePool {
	if n < 1 {
		n = 1
	}
	p := &GoroutinePool{
		tasks: make(chan func(), n*4),
		quit:  make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		go p.loop(i)
	}
	return p
}

func (p *GoroutinePool) loop(id int) {
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.runOne(id, task)
		case <-p.quit:
			return
		}
	}
}

// runOne recovers a panicking task so one bad worker never takes the
// whole pool down; the selector additionally recovers around its own
// dispatched closures to attribute the fault to a node.
func (p *GoroutinePool) runOne(id int, task func()) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Int("worker", id).Interface("panic", r).Msg("workerpool: recovered task panic")
		}
	}()
	task()
}

// Queue submits task to the pool without ever blocking the caller, per
// Pool's own contract. The fixed-size task channel is the fast path for
// the common case of a task queued from outside the pool, but a task
// running on a worker can itself recurse and queue further sub-tasks
// into this same pool (the selector's dispatchChildren does exactly
// this once a sub-descent's remaining budget still clears
// SelectParallelThreshold) — if every worker is blocked trying to push
// more work into a full channel at once, nothing is left to drain it,
// and a blocking send would deadlock the whole pool. Queue falls back
// to running the task on its own goroutine instead of blocking on a
// full channel.
func (p *GoroutinePool) Queue(task func()) {
	p.wg.Add(1)
	select {
	case p.tasks <- task:
	default:
		go p.runOne(-1, task)
	}
}

// WaitDone blocks until every queued task has completed.
func (p *GoroutinePool) WaitDone() {
	p.wg.Wait()
}

// Shutdown stops all worker goroutines. Idempotent.
func (p *GoroutinePool) Shutdown() {
	p.once.Do(func() {
		close(p.quit)
	})
}

// SupportsWaitDone always reports true for GoroutinePool.
func (p *GoroutinePool) SupportsWaitDone() bool { return true }
