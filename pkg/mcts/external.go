package mcts

// Annotator populates derived position metadata on first visit. Annotate
// must be idempotent: IsAnnotated(h) must report true after a successful
// call, and a second call must be a safe no-op (spec.md §4.2, §6).
type Annotator interface {
	Annotate(h NodeHandle) error
	IsAnnotated(h NodeHandle) bool
}

// PUCTScorer is the externally supplied policy-scoring function (spec.md
// §4.4, §6). It produces, per child in childRange, a PUCT score
// accounting for prior P, child Q, child N, and the virtual-loss penalty
// implied by current NInFlight, then simulates `target` sequential picks
// and returns both the raw scores (for diagnostics) and the resulting
// per-child visit tally. The core trusts the scorer's ordering; it only
// consumes visitCounts to drive the descent.
type PUCTScorer interface {
	ComputeTopChildScores(
		n NodeHandle,
		selector SelectorID,
		depth int,
		vLossBoost float64,
		childRange ChildRange,
		target int,
		cpuctMultiplier float64,
	) (scores []float64, visitCounts []int32)
}

// TranspositionRoots is the process-local ZobristHash -> NodeIndex map
// maintained by the surrounding search and read by the core (spec.md §3,
// §6).
type TranspositionRoots interface {
	Lookup(zobrist uint64) (NodeIndex, bool)
}
