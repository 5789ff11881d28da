package mcts

// DistributeVisits runs C4, the PUCT visit distributor: given node n and
// a target leaf budget target, it asks scorer for per-child PUCT scores
// and returns how many of target visits are routed to each child in
// [0, K), per spec.md §4.4.
//
// DistributeVisits is deterministic given identical inputs (P5): it
// reads n only through the handle and scorer, never through ambient
// concurrent state, and the scorer is trusted to behave the same way.
func DistributeVisits(
	n NodeHandle,
	selector SelectorID,
	depth int,
	vLossBoost float64,
	target int,
	cpuctMultiplier float64,
	scorer PUCTScorer,
) (visitChildCounts []int32, k int) {
	numPolicyMoves := int(n.NumPolicyMoves())
	numVisited := int(n.NumChildrenVisited())

	// Step 1: widest prefix we might need, given at most `target`
	// unvisited children can be opened on this call.
	k = numVisited + target
	if k > numPolicyMoves {
		k = numPolicyMoves
	}
	if k < 0 {
		k = 0
	}

	visitChildCounts = make([]int32, k)
	if k == 0 || target == 0 {
		return visitChildCounts, k
	}

	// Step 2: first-visit shortcut.
	if k == 1 {
		visitChildCounts[0] = int32(target)
		return visitChildCounts, k
	}

	// Step 3: the scorer itself simulates the T sequential PUCT picks
	// and returns the resulting tally (spec.md §4.4 step 3: each pick
	// updates the virtual-loss term for subsequent picks). The core
	// trusts the scorer's tally: it copies the first k counts and does
	// not check that they sum to target.
	_, counts := scorer.ComputeTopChildScores(
		n, selector, depth, vLossBoost,
		ChildRange{Start: 0, End: k}, target, cpuctMultiplier,
	)

	copy(visitChildCounts, counts)
	return visitChildCounts, k
}
