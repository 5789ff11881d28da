package workerpool

// InlinePool is the SupportsWaitDone()==false fallback: Queue runs task
// synchronously on the caller's goroutine. Used when
// Config.SelectParallelEnabled is false, per Design Notes ("choose the
// barrier-based fallback when absent") — here there is nothing to wait
// for, since every task has already finished by the time Queue returns.
type InlinePool struct{}

// NewInlinePool returns the singleton-shaped inline adapter.
func NewInlinePool() *InlinePool { return &InlinePool{} }

// Queue runs task immediately, synchronously.
func (InlinePool) Queue(task func()) { task() }

// WaitDone is a no-op: Queue never leaves outstanding work.
func (InlinePool) WaitDone() {}

// Shutdown is a no-op: there are no background goroutines to stop.
func (InlinePool) Shutdown() {}

// SupportsWaitDone always reports false for InlinePool.
func (InlinePool) SupportsWaitDone() bool { return false }
