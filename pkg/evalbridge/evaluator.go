// Package evalbridge models the "reuse other tree" leaf evaluator and
// its siblings as a tagged sum of capability-set implementations
// (Design Notes, "Deep inheritance in the source evaluator hierarchy
// ... model as a variant over {TryEvaluate, Reset}, not a class tree"),
// realized the idiomatic Go way: an interface plus plain concrete
// types, selected per node rather than dispatched through a hierarchy.
package evalbridge

import "fmt"

// EvalContext is the minimal per-node context an Evaluator needs to
// decide whether it can answer a leaf without going to the external
// neural-network evaluator: the position fingerprint the leaf carries
// and an opaque network-definition tag identifying which model produced
// whatever cached statistics the evaluator might reuse.
type EvalContext struct {
	ZobristHash     uint64
	NetworkDefID    string
	IteratorContext any
}

// EvalOutcome is what a successful TryEvaluate hands back: a value
// estimate and win/loss probabilities suitable for substituting into
// OverrideVToApplyFromTransposition-style fields.
type EvalOutcome struct {
	V       float64
	WinP    float64
	LossP   float64
}

// Evaluator is the tagged-sum capability set: TryEvaluate attempts to
// answer a leaf without the external network, Reset clears any
// per-search state (hit/miss counters, cached lookups).
type Evaluator interface {
	TryEvaluate(ctx EvalContext) (EvalOutcome, bool)
	Reset()
}

// ErrIncompatibleReuse describes the first network-definition mismatch
// a reuse evaluator probes (spec.md §7's "Incompatible reuse"). It is
// not returned or raised: ReuseOtherTreeEvaluator logs it, records it
// for FirstIncompatibility, and reports the probe as a miss.
type ErrIncompatibleReuse struct {
	Want, Got string
}

func (e *ErrIncompatibleReuse) Error() string {
	return fmt.Sprintf("evalbridge: incompatible reuse: want network %q, got %q", e.Want, e.Got)
}
