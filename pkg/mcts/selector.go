package mcts

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/corvid-engine/mctscore/pkg/evalbridge"
	"github.com/corvid-engine/mctscore/pkg/workerpool"
)

// BatchletResult is what one SelectNewLeafBatchlet call returns: the
// collected leaves plus any worker faults observed along the way
// (spec.md §4.5.5: faults are logged and collected, never propagated,
// so the batch is considered partial rather than failed).
type BatchletResult struct {
	Leaves []NodeHandle
	Faults []WorkerFault
}

// Selector is the parallel leaf selector, C5: the recursive descent
// orchestrator that dispatches work to a worker pool and collects
// leaves for an external evaluator. Grounded on the teacher's
// Search/Selection descend-expand-recurse shape, generalized from a
// single best-child UCB1 pick per cycle to a budget-aware PUCT fan-out.
type Selector struct {
	ctx  *Context
	pool workerpool.Pool

	outMu sync.Mutex
	out   []NodeHandle

	faultMu sync.Mutex
	faults  []WorkerFault
}

// NewSelector builds a selector over ctx, dispatching parallel
// sub-descents through pool. Pass workerpool.NewInlinePool() when
// Config.SelectParallelEnabled is false.
func NewSelector(ctx *Context, pool workerpool.Pool) *Selector {
	return &Selector{ctx: ctx, pool: pool}
}

// Reset clears the selector's internal leaf/fault accumulator, per
// spec.md §6.
func (sel *Selector) Reset() {
	sel.outMu.Lock()
	sel.out = nil
	sel.outMu.Unlock()

	sel.faultMu.Lock()
	sel.faults = nil
	sel.faultMu.Unlock()
}

// Shutdown returns thread-pool resources, per spec.md §6.
func (sel *Selector) Shutdown() {
	sel.pool.Shutdown()
}

// SelectNewLeafBatchlet descends from root and returns a batchlet of
// leaves whose combined reservation equals target, per spec.md §4.5's
// public contract. The caller must own selector exclusively for the
// duration of this call (at most two concurrent callers, one per
// SelectorID).
func (sel *Selector) SelectNewLeafBatchlet(root NodeHandle, selector SelectorID, target int, vLossBoost float64) BatchletResult {
	sel.outMu.Lock()
	sel.out = make([]NodeHandle, 0, sel.ctx.Config.preloadSize(target))
	sel.outMu.Unlock()

	sel.faultMu.Lock()
	sel.faults = nil
	sel.faultMu.Unlock()

	latch := workerpool.NewCountdown()
	sel.gatherGuarded(root, selector, target, vLossBoost, latch)
	// Dispatch from the root call is now complete; consume the seed
	// unit so Wait can observe zero outstanding work only once every
	// dispatched (possibly recursively fanned-out) worker has also
	// finished.
	latch.Done()
	latch.Wait()

	sel.outMu.Lock()
	leaves := sel.out
	sel.outMu.Unlock()

	sel.faultMu.Lock()
	faults := sel.faults
	sel.faultMu.Unlock()

	return BatchletResult{Leaves: leaves, Faults: faults}
}

// gather is the recursive descent of §4.5. It reserves k on n as its
// first action: every node on the path from root to an emitted leaf is
// reserved exactly once, by the gather call that descends into it,
// which is what makes the reservation chain incremental (§4.3) without
// double-counting at branch nodes.
func (sel *Selector) gather(n NodeHandle, s SelectorID, k int, vLossBoost float64, latch *workerpool.Countdown) {
	if k <= 0 {
		return
	}

	prior := n.ReserveInFlight(s, int32(k))

	// Step 1: lazy transposition materialization (§4.5.1). Guarded on
	// N > 0 because a freshly created deferred node (N == 0) is always
	// a leaf via step 2 below regardless; materializing children it
	// cannot use this call would be harmless but pointless, and "on
	// its second visit" reads most naturally as "once this node has
	// actually been applied once".
	if n.rec().isUnextractedDeferred() && n.rec().N > 0 {
		sel.materializeDeferred(n)
	}

	// Step 2: base cases.
	rec := n.rec()
	if rec.IsLeafCandidate() || rec.isUnextractedDeferred() {
		sel.finishLeaf(n, prior)
		return
	}

	// Step 3: shared-subtree transposition arbitration.
	if sel.ctx.Config.TranspositionMode == TranspositionSharedSubtree {
		next, stop := sel.arbitrateSharedSubtree(n, s, k, prior)
		if stop {
			return
		}
		n = next
	}

	// Step 4: ensure annotated, then compute the PUCT split.
	if err := n.EnsureAnnotated(); err != nil {
		log.Error().Err(err).Uint32("node", uint32(n.Index)).Msg("mcts: annotate failed")
		return
	}

	counts, numChildren := DistributeVisits(
		n, s, n.Depth(), vLossBoost, k, sel.ctx.Config.CPUCTMultiplier, sel.ctx.Scorer,
	)

	// Step 6: walk children in ascending index order, expanding slots
	// and bumping bookkeeping under the parent's expansion lock, then
	// recurse into each child with a nonzero count.
	sel.dispatchChildren(n, s, counts, numChildren, vLossBoost, latch)
}

// materializeDeferred copies the unexpanded children from the
// transposition root into node's own child descriptor (§4.5.1). Pure
// structural copy; no evaluation performed.
func (sel *Selector) materializeDeferred(n NodeHandle) {
	rec := n.rec()
	root := sel.ctx.Handle(rec.TranspositionRootIndex)
	rootRec := root.rec()

	priors := make([]float32, rootRec.NumPolicyMoves)
	for i := int32(0); i < rootRec.NumPolicyMoves; i++ {
		priors[i] = sel.ctx.Store.ChildSlotAt(rootRec, i).Prior
	}

	n.AllocatePolicySlots(priors)
	rec.NumNodesTranspositionExtracted = 2
}

// dispatchChildren implements §4.5 step 6. Child reservation happens
// inside gather itself (at the child's own entry), not here: this loop
// only materializes slots and updates per-parent bookkeeping under the
// expansion lock before handing the recursion off.
func (sel *Selector) dispatchChildren(n NodeHandle, s SelectorID, counts []int32, numChildren int, vLossBoost float64, latch *workerpool.Countdown) {
	parallel := sel.ctx.Config.SelectParallelEnabled
	threshold := sel.ctx.Config.SelectParallelThreshold

	lock := sel.ctx.Store.ExpandLock(n.Index)

	for i := 0; i < numChildren; i++ {
		count := counts[i]
		if count == 0 {
			continue
		}

		lock.Lock()
		slot := n.ChildSlotAt(int32(i))
		var child NodeHandle
		if slot.Expanded {
			child = sel.ctx.Handle(slot.ChildIndex)
		} else {
			child, _ = n.CreateChild(int32(i))
		}
		rec := n.rec()
		if v := int32(i) + 1; v > atomic.LoadInt32(&rec.NumChildrenVisited) {
			atomic.StoreInt32(&rec.NumChildrenVisited, v)
		}
		lock.Unlock()

		if parallel && int(count) >= threshold {
			latch.Add(1)
			sel.pool.Queue(func() {
				defer latch.Done()
				sel.gatherGuarded(child, s, int(count), vLossBoost, latch)
			})
		} else {
			sel.gatherGuarded(child, s, int(count), vLossBoost, latch)
		}
	}
}

// gatherGuarded runs gather, recovering a panic into a WorkerFault so
// one bad descent (inline or pooled) never takes the rest of the
// batchlet down with it, per spec.md §4.5.5.
func (sel *Selector) gatherGuarded(n NodeHandle, s SelectorID, k int, vLossBoost float64, latch *workerpool.Countdown) {
	defer sel.recoverFault(n)
	sel.gather(n, s, k, vLossBoost, latch)
}

func (sel *Selector) recoverFault(n NodeHandle) {
	if r := recover(); r != nil {
		fault := WorkerFault{NodeIndex: n.Index, Err: fmt.Errorf("%v", r)}
		log.Error().Uint32("node", uint32(n.Index)).Interface("panic", r).Msg("mcts: worker fault")
		sel.faultMu.Lock()
		sel.faults = append(sel.faults, fault)
		sel.faultMu.Unlock()
	}
}

// finishLeaf implements §4.5.2: if prior (the value of NInFlight[s]
// observed before gather's entry reservation) was zero, this batchlet
// is the first descent to claim the node, so it is annotated and
// appended to the output. Otherwise a sibling descent already claimed
// it this batchlet; the reservation stands but the node is not
// re-emitted.
func (sel *Selector) finishLeaf(n NodeHandle, prior int32) {
	if prior != 0 {
		return
	}

	if err := n.EnsureAnnotated(); err != nil {
		log.Error().Err(err).Uint32("node", uint32(n.Index)).Msg("mcts: annotate failed on leaf")
	}

	sel.tryEvaluatorHit(n)

	if sel.ctx.Config.TranspositionMode == TranspositionSingleNodeDeferredCopy {
		sel.linkTranspositionRoot(n)
	}

	sel.outMu.Lock()
	sel.out = append(sel.out, n)
	sel.outMu.Unlock()
}

// tryEvaluatorHit implements C7's wiring into the core (spec.md §6): a
// freshly emitted leaf's position fingerprint is offered to the
// context's Evaluator before the leaf reaches the external apply
// phase, so a reuse hit can substitute the other tree's cached value
// estimate instead of paying for a fresh network evaluation. A miss
// (including the FreshEvaluator default) leaves the leaf untouched for
// the apply phase to evaluate normally.
func (sel *Selector) tryEvaluatorHit(n NodeHandle) {
	outcome, ok := sel.ctx.Evaluator.TryEvaluate(evalbridge.EvalContext{ZobristHash: n.ZobristHash()})
	if !ok {
		return
	}
	rec := n.rec()
	rec.OverrideVToApplyFromTransposition = outcome.V
	rec.HasOverrideV = true
	n.SetEvaluation(outcome.WinP, outcome.LossP, rec.MPosition)
}

// linkTranspositionRoot implements the SingleNodeDeferredCopy half of
// §4.5.1: the first time a brand-new node (N == 0, just annotated so its
// ZobristHash is now known) turns out to share a fingerprint with an
// existing transposition root, mark it deferred instead of eagerly
// copying the root's children. The node is still emitted as a leaf this
// call exactly like any other first visit; materialization happens on
// its *second* visit, in gather's step 1.
func (sel *Selector) linkTranspositionRoot(n NodeHandle) {
	rec := n.rec()
	if rec.NumNodesTranspositionExtracted != 0 {
		return
	}
	rootIdx, ok := sel.ctx.Roots.Lookup(rec.ZobristHash)
	if !ok || rootIdx == n.Index {
		return
	}
	rec.TranspositionRootIndex = rootIdx
	rec.NumNodesTranspositionExtracted = 1
}

// arbitrateSharedSubtree implements §4.5.3. It returns the node the
// descent should continue through (next) and whether gather should
// return immediately (stop) — true both when the descent abandons
// without emitting a leaf, and when n itself was just emitted as an
// override-V leaf.
func (sel *Selector) arbitrateSharedSubtree(n NodeHandle, s SelectorID, k int, prior int32) (next NodeHandle, stop bool) {
	mIdx, ok := sel.ctx.Roots.Lookup(n.ZobristHash())
	if !ok {
		return n, false
	}
	m := sel.ctx.Handle(mIdx)

	if m.N() < n.N() {
		return n, false
	}

	if m.N() > n.N() {
		rec, mRec := n.rec(), m.rec()
		rec.OverrideVToApplyFromTransposition = (mRec.W - rec.W) / float64(mRec.N-rec.N)
		rec.HasOverrideV = true
		sel.finishLeaf(n, prior)
		return n, true
	}

	// m.N() == n.N()
	if m.Index == n.Index {
		return n, false
	}

	if m.GetNInFlight(Selector0) > 0 || m.GetNInFlight(Selector1) > 0 {
		// m is claimed by another descent; abandon and unwind the
		// reservation this call just made, from n itself up through
		// every ancestor (P3: net zero on every touched node).
		n.BackupDecrementInFlight(s, int32(k))
		return n, true
	}

	// m is idle: master swap, transfer this descent's reservation from
	// the old n onto m, and continue through m.
	sel.masterSwap(n, m)
	n.ReleaseInFlight(s, int32(k))
	m.ReserveInFlight(s, int32(k))
	return m, false
}

// masterSwap exchanges the parent references of m and n per §4.5.3 and
// §8's P7: both old parents' child slots are relinked to resolve to
// their new targets, and ParentIndex/SlotInParent are exchanged on both
// records.
func (sel *Selector) masterSwap(n, m NodeHandle) {
	nParentIdx, nSlot := n.rec().ParentIndex, n.rec().SlotInParent
	mParentIdx, mSlot := m.rec().ParentIndex, m.rec().SlotInParent

	lockA := sel.ctx.Store.ExpandLock(nParentIdx)
	lockB := sel.ctx.Store.ExpandLock(mParentIdx)
	switch {
	case lockA == lockB:
		lockA.Lock()
		defer lockA.Unlock()
	case nParentIdx < mParentIdx:
		lockA.Lock()
		defer lockA.Unlock()
		lockB.Lock()
		defer lockB.Unlock()
	default:
		lockB.Lock()
		defer lockB.Unlock()
		lockA.Lock()
		defer lockA.Unlock()
	}

	sel.ctx.Store.ModifyParentsChildRef(nParentIdx, nSlot, m.Index)
	sel.ctx.Store.ModifyParentsChildRef(mParentIdx, mSlot, n.Index)

	nRec, mRec := n.rec(), m.rec()
	nRec.ParentIndex, mRec.ParentIndex = mParentIdx, nParentIdx
	nRec.SlotInParent, mRec.SlotInParent = mSlot, nSlot
}
