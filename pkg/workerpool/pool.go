// Package workerpool provides the thread-pool capability-set
// abstraction the parallel leaf selector dispatches sub-descents
// through (spec.md §6, Design Notes "Thread-pool abstraction"): a single
// interface with an optional SupportsWaitDone flag, instead of two
// unrelated pool hierarchies ("the external pool and the internal pool
// ... model as a single interface").
package workerpool

// Pool is the minimal capability set the selector needs from a worker
// pool: queue a task, optionally wait for outstanding work to drain,
// and release resources.
type Pool interface {
	// Queue submits task for execution. Queue never blocks waiting for
	// a worker slot to free up in GoroutinePool; InlinePool runs task
	// synchronously before returning.
	Queue(task func())

	// WaitDone blocks until every task queued so far has completed.
	// Callers must check SupportsWaitDone before relying on this as a
	// real barrier; pools that report false still implement WaitDone
	// as a no-op so the interface stays uniform.
	WaitDone()

	// Shutdown releases pool resources. Queue must not be called after
	// Shutdown returns.
	Shutdown()

	// SupportsWaitDone reports whether WaitDone is a genuine barrier.
	// The selector does not consult this flag or call WaitDone: it
	// joins its dispatched sub-descents through its own Countdown with
	// every Pool implementation.
	SupportsWaitDone() bool
}
