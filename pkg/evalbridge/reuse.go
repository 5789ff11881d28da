package evalbridge

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// CompatibleFn is the "evaluator compatibility check" of spec.md §6: a
// boolean predicate over two iterator contexts, used to decide whether
// a lookup result from another tree's store may be reused here.
type CompatibleFn func(a, b EvalContext) bool

// LookupFn probes another search's node store for a cached outcome at
// the given position fingerprint.
type LookupFn func(zobrist uint64) (EvalOutcome, EvalContext, bool)

// ReuseOtherTreeEvaluator wraps a compatibility predicate and a lookup
// into another search's node store. Per-instance hit/miss counters
// replace the source's global mutable statistics (Design Notes, "Global
// mutable hit/miss counters ... replace with per-instance counters
// exposed through the evaluator interface"); aggregation across
// multiple instances is the caller's job.
type ReuseOtherTreeEvaluator struct {
	compatible CompatibleFn
	lookup     LookupFn
	self       EvalContext

	hits   atomic.Int64
	misses atomic.Int64

	incompatible atomic.Bool
	firstMismatch atomic.Value // *ErrIncompatibleReuse
}

// NewReuseOtherTreeEvaluator builds an evaluator that probes lookup for
// a cached outcome, accepting it only when compatible(self, found)
// reports true for the context self declares up front.
func NewReuseOtherTreeEvaluator(self EvalContext, compatible CompatibleFn, lookup LookupFn) *ReuseOtherTreeEvaluator {
	return &ReuseOtherTreeEvaluator{
		compatible: compatible,
		lookup:     lookup,
		self:       self,
	}
}

func (r *ReuseOtherTreeEvaluator) TryEvaluate(ctx EvalContext) (EvalOutcome, bool) {
	outcome, foundCtx, ok := r.lookup(ctx.ZobristHash)
	if !ok {
		r.misses.Add(1)
		return EvalOutcome{}, false
	}

	if !r.compatible(r.self, foundCtx) {
		r.misses.Add(1)
		if r.incompatible.CompareAndSwap(false, true) {
			mismatch := &ErrIncompatibleReuse{Want: r.self.NetworkDefID, Got: foundCtx.NetworkDefID}
			r.firstMismatch.Store(mismatch)
			log.Warn().Str("want", mismatch.Want).Str("got", mismatch.Got).
				Msg("evalbridge: incompatible reuse, falling back to fresh evaluation")
		}
		return EvalOutcome{}, false
	}

	r.hits.Add(1)
	return outcome, true
}

func (r *ReuseOtherTreeEvaluator) Reset() {
	r.hits.Store(0)
	r.misses.Store(0)
	r.incompatible.Store(false)
	r.firstMismatch.Store((*ErrIncompatibleReuse)(nil))
}

// Hits returns the number of leaves this instance answered by reuse.
func (r *ReuseOtherTreeEvaluator) Hits() int64 { return r.hits.Load() }

// Misses returns the number of leaves this instance could not answer.
func (r *ReuseOtherTreeEvaluator) Misses() int64 { return r.misses.Load() }

// FirstIncompatibility returns the first detected network-definition
// mismatch, if any, since the last Reset.
func (r *ReuseOtherTreeEvaluator) FirstIncompatibility() *ErrIncompatibleReuse {
	v := r.firstMismatch.Load()
	if v == nil {
		return nil
	}
	return v.(*ErrIncompatibleReuse)
}
