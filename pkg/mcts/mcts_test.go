package mcts

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-engine/mctscore/pkg/workerpool"
)

// stubAnnotator gives every node a fixed branching factor and a terminal
// tag driven entirely by depth, so tests can build deterministic trees
// without a real game domain, mirroring the teacher's DummyOps in
// mcts_test.go.
type stubAnnotator struct {
	mu           sync.Mutex
	branchFactor int
	terminalAt   int
	annotated    map[NodeIndex]bool
}

func newStubAnnotator(branchFactor, terminalAt int) *stubAnnotator {
	return &stubAnnotator{branchFactor: branchFactor, terminalAt: terminalAt, annotated: map[NodeIndex]bool{}}
}

func (s *stubAnnotator) IsAnnotated(h NodeHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.annotated[h.Index]
}

func (s *stubAnnotator) Annotate(h NodeHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.annotated[h.Index] {
		return nil
	}
	s.annotated[h.Index] = true

	h.SetZobristHash(uint64(h.Index) + 1)

	if s.terminalAt > 0 && h.Depth() >= s.terminalAt {
		h.SetTerminal(TerminalLoss)
		return nil
	}

	priors := make([]float32, s.branchFactor)
	for i := range priors {
		priors[i] = 1.0 / float32(s.branchFactor)
	}
	h.AllocatePolicySlots(priors)
	return nil
}

// stubScorer always spreads target visits round-robin across the first
// numChildren slots, favoring unvisited children by walking in ascending
// index order first; deterministic and cheap enough for P4/P5 checks.
type stubScorer struct{}

func (stubScorer) ComputeTopChildScores(
	n NodeHandle, selector SelectorID, depth int, vLossBoost float64,
	childRange ChildRange, target int, cpuctMultiplier float64,
) ([]float64, []int32) {
	k := childRange.Len()
	scores := make([]float64, k)
	counts := make([]int32, k)
	if k == 0 || target == 0 {
		return scores, counts
	}
	for picked := 0; picked < target; picked++ {
		counts[picked%k]++
	}
	return scores, counts
}

type stubRoots struct {
	mu  sync.Mutex
	m   map[uint64]NodeIndex
}

func newStubRoots() *stubRoots { return &stubRoots{m: map[uint64]NodeIndex{}} }

func (r *stubRoots) Lookup(z uint64) (NodeIndex, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.m[z]
	return idx, ok
}

func (r *stubRoots) Observe(z uint64, idx NodeIndex) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[z]; !ok {
		r.m[z] = idx
	}
}

func newTestContext(branchFactor, terminalAt int, mode TranspositionMode) (*Context, *stubAnnotator, *stubRoots) {
	store := NewStore(4096, 16384)
	ann := newStubAnnotator(branchFactor, terminalAt)
	roots := newStubRoots()
	cfg := DefaultConfig().SetTranspositionMode(mode)
	ctx := NewContext(store, ann, stubScorer{}, roots, cfg)
	return ctx, ann, roots
}

// applyLeaf stands in for the external apply phase: bumps N/W on the
// leaf's path to root and releases the reservation gather made there,
// the same shape as examples/gridgame.Backpropagate without the
// alternating sign convention (these trees have no notion of players).
func applyLeaf(h NodeHandle, s SelectorID, v float64) {
	cur := h
	for {
		cur.ApplyEvaluation(v)
		cur.ReleaseInFlight(s, 1)
		p, ok := cur.Parent()
		if !ok {
			return
		}
		cur = p
	}
}

func TestSelectNewLeafBatchletSingleLeafTrivial(t *testing.T) {
	ctx, _, _ := newTestContext(4, 0, TranspositionNone)
	root := ctx.Root(0)
	sel := NewSelector(ctx, workerpool.NewInlinePool())

	result := sel.SelectNewLeafBatchlet(root, Selector0, 1, 1.0)

	require.Len(t, result.Leaves, 1)
	assert.Empty(t, result.Faults)
	assert.Equal(t, root.Index, result.Leaves[0].Index)
	assert.EqualValues(t, 1, root.GetNInFlight(Selector0))
}

func TestSelectNewLeafBatchletFirstExpansionFansOutToChildren(t *testing.T) {
	ctx, _, _ := newTestContext(4, 0, TranspositionNone)
	root := ctx.Root(0)
	sel := NewSelector(ctx, workerpool.NewInlinePool())

	// Seed the root with one completed visit so it is no longer a leaf
	// candidate itself; the first real batchlet always needs this, since
	// gather's base case is N == 0.
	require.NoError(t, root.EnsureAnnotated())
	root.ApplyEvaluation(0)

	result := sel.SelectNewLeafBatchlet(root, Selector0, 4, 1.0)

	require.Len(t, result.Leaves, 4)
	for _, leaf := range result.Leaves {
		parent, ok := leaf.Parent()
		require.True(t, ok)
		assert.Equal(t, root.Index, parent.Index)
	}
}

func TestSelectNewLeafBatchletSplitAcrossTwoChildren(t *testing.T) {
	ctx, _, _ := newTestContext(4, 0, TranspositionNone)
	root := ctx.Root(0)
	sel := NewSelector(ctx, workerpool.NewInlinePool())

	require.NoError(t, root.EnsureAnnotated())
	root.ApplyEvaluation(0)

	result := sel.SelectNewLeafBatchlet(root, Selector0, 2, 1.0)
	require.Len(t, result.Leaves, 2)

	seen := map[NodeIndex]bool{}
	for _, leaf := range result.Leaves {
		seen[leaf.Index] = true
	}
	assert.Len(t, seen, 2, "stubScorer's round robin must route to two distinct children")
}

func TestSelectNewLeafBatchletTerminalRevisit(t *testing.T) {
	ctx, _, _ := newTestContext(4, 1, TranspositionNone)
	root := ctx.Root(0)
	sel := NewSelector(ctx, workerpool.NewInlinePool())

	// terminalAt 1 makes depth-1 nodes terminal; seed the root with one
	// completed visit so the first batchlet descends to such a child
	// instead of emitting the (non-terminal) root itself.
	require.NoError(t, root.EnsureAnnotated())
	root.ApplyEvaluation(0)

	first := sel.SelectNewLeafBatchlet(root, Selector0, 1, 1.0)
	require.Len(t, first.Leaves, 1)
	leaf := first.Leaves[0]
	assert.Equal(t, TerminalLoss, leaf.Terminal())

	applyLeaf(leaf, Selector0, 1.0)
	sel.Reset()

	second := sel.SelectNewLeafBatchlet(root, Selector0, 1, 1.0)
	require.Len(t, second.Leaves, 1, "a terminal node with N>0 is still a leaf candidate every visit")
	assert.Equal(t, leaf.Index, second.Leaves[0].Index)
}

func TestSelectNewLeafBatchletSameBatchRevisitDoesNotDoubleEmit(t *testing.T) {
	ctx, _, _ := newTestContext(1, 0, TranspositionNone)
	root := ctx.Root(0)
	sel := NewSelector(ctx, workerpool.NewInlinePool())

	require.NoError(t, root.EnsureAnnotated())
	root.ApplyEvaluation(0)

	// branchFactor 1 forces every unit of a multi-unit request down the
	// same single child, which must still surface as exactly one leaf:
	// the whole budget reaches the child in one gather call, which
	// reserves all 5 units at once and emits the child a single time.
	result := sel.SelectNewLeafBatchlet(root, Selector0, 5, 1.0)

	require.Len(t, result.Leaves, 1)
	leaf := result.Leaves[0]
	assert.EqualValues(t, 5, leaf.GetNInFlight(Selector0))
}

func TestReserveAndReleaseInFlightConserveReservation(t *testing.T) {
	ctx, _, _ := newTestContext(4, 0, TranspositionNone)
	root := ctx.Root(0)

	prior := root.ReserveInFlight(Selector0, 3)
	assert.EqualValues(t, 0, prior)
	assert.EqualValues(t, 3, root.GetNInFlight(Selector0))

	root.ReleaseInFlight(Selector0, 3)
	assert.EqualValues(t, 0, root.GetNInFlight(Selector0))
	_ = ctx
}

func TestReleaseInFlightUnderflowPanics(t *testing.T) {
	ctx, _, _ := newTestContext(4, 0, TranspositionNone)
	root := ctx.Root(0)

	assert.Panics(t, func() {
		root.ReleaseInFlight(Selector0, 1)
	})
}

func TestBackupDecrementInFlightUnwindsWholePath(t *testing.T) {
	ctx, ann, _ := newTestContext(4, 0, TranspositionNone)
	root := ctx.Root(0)
	require.NoError(t, ann.Annotate(root))

	child, created := root.CreateChild(0)
	require.True(t, created)

	root.ReserveInFlight(Selector0, 2)
	child.ReserveInFlight(Selector0, 2)

	child.BackupDecrementInFlight(Selector0, 2)

	assert.EqualValues(t, 0, root.GetNInFlight(Selector0))
	assert.EqualValues(t, 0, child.GetNInFlight(Selector0))
}

func TestDistributeVisitsBudgetMatchesTarget(t *testing.T) {
	ctx, ann, _ := newTestContext(8, 0, TranspositionNone)
	root := ctx.Root(0)
	require.NoError(t, ann.Annotate(root))

	counts, k := DistributeVisits(root, Selector0, 0, 1.0, 10, 1.0, stubScorer{})
	require.Equal(t, 8, k)

	var total int32
	for _, c := range counts {
		total += c
	}
	assert.EqualValues(t, 10, total)
}

func TestDistributeVisitsDeterministicGivenSameInputs(t *testing.T) {
	ctx, ann, _ := newTestContext(8, 0, TranspositionNone)
	root := ctx.Root(0)
	require.NoError(t, ann.Annotate(root))

	c1, k1 := DistributeVisits(root, Selector0, 0, 1.0, 10, 1.0, stubScorer{})
	c2, k2 := DistributeVisits(root, Selector0, 0, 1.0, 10, 1.0, stubScorer{})

	assert.Equal(t, k1, k2)
	assert.Equal(t, c1, c2)
}

func TestDistributeVisitsSingleChildShortcut(t *testing.T) {
	ctx, ann, _ := newTestContext(1, 0, TranspositionNone)
	root := ctx.Root(0)
	require.NoError(t, ann.Annotate(root))

	counts, k := DistributeVisits(root, Selector0, 0, 1.0, 7, 1.0, stubScorer{})
	require.Equal(t, 1, k)
	assert.EqualValues(t, 7, counts[0])
}

// TestGatherConcurrentExpansionSerializesUnderLock exercises P6: many
// concurrent descents into the same fresh parent must expand each child
// slot exactly once, never racing CreateChild against itself.
func TestGatherConcurrentExpansionSerializesUnderLock(t *testing.T) {
	ctx, _, _ := newTestContext(4, 0, TranspositionNone)
	root := ctx.Root(0)
	pool := workerpool.NewGoroutinePool(8)
	defer pool.Shutdown()
	sel := NewSelector(ctx, pool)

	cfg := ctx.Config.SetSelectParallel(true, 1)
	ctx.Config = cfg

	require.NoError(t, root.EnsureAnnotated())
	root.ApplyEvaluation(0)

	var wg sync.WaitGroup
	results := make([]BatchletResult, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = sel.SelectNewLeafBatchlet(root, Selector0, 8, 1.0)
		}(i)
	}
	wg.Wait()

	// Selector0 is only safe for one concurrent caller per spec, but this
	// test only checks that CreateChild's expansion lock never lets two
	// goroutines materialize the same child slot twice, regardless of
	// scheduling order; re-running the batchlets sequentially would be
	// the documented contract, concurrent calls here just stress the
	// expansion lock itself via the same root.
	seenChildren := map[NodeIndex]bool{}
	for i := int32(0); i < root.NumPolicyMoves(); i++ {
		slot := root.ChildSlotAt(i)
		if slot.Expanded {
			assert.False(t, seenChildren[slot.ChildIndex], "child slot %d materialized more than once", i)
			seenChildren[slot.ChildIndex] = true
		}
	}
}

func TestTranspositionSingleNodeDeferredCopyMaterializesOnSecondVisit(t *testing.T) {
	ctx, ann, roots := newTestContext(4, 0, TranspositionSingleNodeDeferredCopy)
	root := ctx.Root(0)
	sel := NewSelector(ctx, workerpool.NewInlinePool())

	require.NoError(t, root.EnsureAnnotated())
	root.ApplyEvaluation(0)

	first := sel.SelectNewLeafBatchlet(root, Selector0, 1, 1.0)
	require.Len(t, first.Leaves, 1)
	masterLeaf := first.Leaves[0]
	applyLeaf(masterLeaf, Selector0, 0.5)
	roots.Observe(masterLeaf.ZobristHash(), masterLeaf.Index)
	sel.Reset()

	// Force a second node to be annotated with the exact same
	// fingerprint stubAnnotator assigns by index, by creating a sibling
	// child directly and overwriting its hash to collide.
	other, created := root.CreateChild(1)
	require.True(t, created)
	require.NoError(t, ann.Annotate(other))
	other.SetZobristHash(masterLeaf.ZobristHash())

	result := sel.SelectNewLeafBatchlet(other, Selector0, 1, 1.0)
	require.Len(t, result.Leaves, 1)
	leaf := result.Leaves[0]
	assert.EqualValues(t, 1, leaf.rec().NumNodesTranspositionExtracted, "first visit after collision only links, it does not copy yet")

	// This batchlet was rooted at other, so only other carries a
	// reservation; applyLeaf would also release on root, which has none.
	leaf.ApplyEvaluation(0.5)
	leaf.ReleaseInFlight(Selector0, 1)
	sel.Reset()

	second := sel.SelectNewLeafBatchlet(other, Selector0, 1, 1.0)
	require.Len(t, second.Leaves, 1)
	assert.EqualValues(t, 2, other.rec().NumNodesTranspositionExtracted, "second visit materializes the deferred children")
	assert.Equal(t, masterLeaf.NumPolicyMoves(), other.NumPolicyMoves())
}

func TestArbitrateSharedSubtreeAbandonReleasesReservationOnWholePath(t *testing.T) {
	ctx, ann, roots := newTestContext(4, 0, TranspositionSharedSubtree)
	root := ctx.Root(0)

	require.NoError(t, ann.Annotate(root))
	master, created := root.CreateChild(0)
	require.True(t, created)
	require.NoError(t, ann.Annotate(master))
	other, created := root.CreateChild(1)
	require.True(t, created)
	require.NoError(t, ann.Annotate(other))
	other.SetZobristHash(master.ZobristHash())

	roots.Observe(master.ZobristHash(), master.Index)

	// Equal visit counts and master already claimed by selector1: other's
	// descent must abandon and unwind cleanly (P3).
	master.ApplyEvaluation(0)
	other.ApplyEvaluation(0)
	master.ReserveInFlight(Selector1, 1)

	root.ReserveInFlight(Selector0, 2)
	other.ReserveInFlight(Selector0, 2)

	sel := &Selector{ctx: ctx}
	next, stop := sel.arbitrateSharedSubtree(other, Selector0, 2, 1)

	assert.True(t, stop)
	assert.Equal(t, other.Index, next.Index)
	assert.EqualValues(t, 0, other.GetNInFlight(Selector0))
	assert.EqualValues(t, 0, root.GetNInFlight(Selector0))

	master.ReleaseInFlight(Selector1, 1)
}

func TestMasterSwapExchangesParentageSymmetrically(t *testing.T) {
	ctx, ann, _ := newTestContext(4, 0, TranspositionNone)
	rootA := ctx.Root(0)
	rootB := ctx.Root(1)

	require.NoError(t, ann.Annotate(rootA))
	require.NoError(t, ann.Annotate(rootB))

	n, created := rootA.CreateChild(2)
	require.True(t, created)
	m, created := rootB.CreateChild(3)
	require.True(t, created)

	sel := &Selector{ctx: ctx}
	sel.masterSwap(n, m)

	assert.Equal(t, rootB.Index, n.rec().ParentIndex)
	assert.EqualValues(t, 3, n.rec().SlotInParent)
	assert.Equal(t, rootA.Index, m.rec().ParentIndex)
	assert.EqualValues(t, 2, m.rec().SlotInParent)

	nSlot := rootB.ChildSlotAt(3)
	assert.Equal(t, n.Index, nSlot.ChildIndex)
	mSlot := rootA.ChildSlotAt(2)
	assert.Equal(t, m.Index, mSlot.ChildIndex)
}

func TestAllocatePolicySlotsAndCreateChildRoundTrip(t *testing.T) {
	ctx, _, _ := newTestContext(4, 0, TranspositionNone)
	root := ctx.Root(0)

	root.AllocatePolicySlots([]float32{0.1, 0.2, 0.3, 0.4})
	assert.EqualValues(t, 4, root.NumPolicyMoves())

	child, created := root.CreateChild(1)
	require.True(t, created)
	assert.Equal(t, root.Index, child.rec().ParentIndex)
	assert.EqualValues(t, 1, child.SlotInParent())

	again, created := root.CreateChild(1)
	assert.False(t, created)
	assert.Equal(t, child.Index, again.Index)
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig().SetTranspositionMode(TranspositionSharedSubtree).SetSelectParallel(true, 16)
	data, err := cfg.DumpYAML()
	require.NoError(t, err)

	loaded, err := LoadConfigYAML(data)
	require.NoError(t, err)

	assert.Equal(t, cfg.TranspositionMode, loaded.TranspositionMode)
	assert.Equal(t, cfg.SelectParallelEnabled, loaded.SelectParallelEnabled)
	assert.Equal(t, cfg.SelectParallelThreshold, loaded.SelectParallelThreshold)
}

func TestPreloadSizeRespectsBoundsAndFloor(t *testing.T) {
	cfg := DefaultConfig().SetPreload(1, 16).SetPaddedBatchSizing(true, 4, 2.0)
	assert.Equal(t, 16, cfg.preloadSize(10))

	cfg2 := DefaultConfig().SetPreload(1, 1000)
	assert.Equal(t, 10, cfg2.preloadSize(10))
}
