package mcts

import "fmt"

// ErrInvariantViolation reports a detected violation of I1–I6. Normal
// domain signals (terminal, transposition abandon, already-claimed leaf)
// are never errors — only state transitions — per spec.md §7.
type ErrInvariantViolation struct {
	Invariant string
	Detail    string
}

func (e *ErrInvariantViolation) Error() string {
	return fmt.Sprintf("mcts: invariant %s violated: %s", e.Invariant, e.Detail)
}

// raiseInvariantViolation panics by default (PanicOnInvariantViolation),
// matching spec.md §7's "never swallow invariant violations in release
// builds by design". Tests may flip the flag to get the error back
// instead, to assert absence without crashing the suite.
func raiseInvariantViolation(invariant, detail string) error {
	err := &ErrInvariantViolation{Invariant: invariant, Detail: detail}
	if PanicOnInvariantViolation {
		panic(err)
	}
	return err
}

// WorkerFault records a recovered panic or returned error from one
// dispatched worker (spec.md §4.5.5: "Worker-thread exceptions are
// logged but never propagated; the batch is considered partial").
type WorkerFault struct {
	NodeIndex NodeIndex
	Err       error
}

func (f WorkerFault) Error() string {
	return fmt.Sprintf("mcts: worker fault at node %d: %v", f.NodeIndex, f.Err)
}
