package mcts

import "sync/atomic"

// NodeHandle is a copy-cheap navigator over a Context: a (context,
// NodeIndex) pair, per spec.md §4.2. Handles carry no ownership; the
// Store inside the context owns every NodeRecord exclusively.
type NodeHandle struct {
	ctx   *Context
	Index NodeIndex
}

// Valid reports whether this handle addresses a real node.
func (h NodeHandle) Valid() bool {
	return h.ctx != nil && h.Index != NoIndex
}

func (h NodeHandle) rec() *NodeRecord {
	return h.ctx.Store.Get(h.Index)
}

// Store exposes the underlying arena, for components (selector, scorer)
// that need raw access beyond the handle's navigation surface.
func (h NodeHandle) Store() *Store {
	return h.ctx.Store
}

// Context exposes the shared collaborators bundle.
func (h NodeHandle) Context() *Context {
	return h.ctx
}

// Parent returns this node's parent handle, or an invalid handle at the
// root.
func (h NodeHandle) Parent() (NodeHandle, bool) {
	p := h.rec().ParentIndex
	if p == NoIndex {
		return NodeHandle{}, false
	}
	return h.ctx.Handle(p), true
}

// IsRoot reports whether this node has no parent.
func (h NodeHandle) IsRoot() bool {
	return h.rec().ParentIndex == NoIndex
}

// Depth walks the parent chain and counts ancestors. Cheap enough for
// descent-time use (batchlet depths are small relative to
// NumPolicyMoves fan-out); not cached, since a master swap can change
// a node's parent.
func (h NodeHandle) Depth() int {
	d := 0
	cur := h
	for {
		p, ok := cur.Parent()
		if !ok {
			return d
		}
		d++
		cur = p
	}
}

// ChildSlotAt returns slot i of this node's child descriptor.
func (h NodeHandle) ChildSlotAt(i int32) *ChildSlot {
	return h.ctx.Store.ChildSlotAt(h.rec(), i)
}

// ChildrenSlice returns the live window of child slots [0, NumPolicyMoves).
func (h NodeHandle) ChildrenSlice() []ChildSlot {
	rec := h.rec()
	if rec.NumPolicyMoves == 0 {
		return nil
	}
	start := int(rec.ChildrenStart)
	return h.ctx.Store.children[start : start+int(rec.NumPolicyMoves)]
}

// ChildAt returns the handle for an already-expanded child slot.
func (h NodeHandle) ChildAt(i int32) (NodeHandle, bool) {
	slot := h.ChildSlotAt(i)
	if !slot.Expanded {
		return NodeHandle{}, false
	}
	return h.ctx.Handle(slot.ChildIndex), true
}

// N returns the completed-visit count.
func (h NodeHandle) N() int64 { return h.rec().N }

// W returns the summed value estimate.
func (h NodeHandle) W() float64 { return h.rec().W }

// Terminal returns the node's terminal tag.
func (h NodeHandle) Terminal() TerminalState { return h.rec().Terminal }

// SetTerminal sets the terminal tag; called only by Annotate.
func (h NodeHandle) SetTerminal(t TerminalState) { h.rec().Terminal = t }

// ZobristHash returns the node's position fingerprint.
func (h NodeHandle) ZobristHash() uint64 { return h.rec().ZobristHash }

// SetZobristHash sets the node's position fingerprint; called only by
// Annotate.
func (h NodeHandle) SetZobristHash(z uint64) { h.rec().ZobristHash = z }

// WinP, LossP and MPosition return the prior-policy/value outputs
// cached from a previous evaluation (spec.md §3). Callers that reuse a
// cached evaluation (e.g. an evalbridge.Evaluator hit, or a
// transposition copy) read these; Annotate populates them once.
func (h NodeHandle) WinP() float64     { return h.rec().WinP }
func (h NodeHandle) LossP() float64    { return h.rec().LossP }
func (h NodeHandle) MPosition() float64 { return h.rec().MPosition }

// SetEvaluation stamps the cached prior-policy/value outputs an
// Annotator (or evalbridge.Evaluator hit) produced for this node.
func (h NodeHandle) SetEvaluation(winP, lossP, mPosition float64) {
	rec := h.rec()
	rec.WinP, rec.LossP, rec.MPosition = winP, lossP, mPosition
}

// HasOverrideV and OverrideVToApplyFromTransposition expose the §4.5.3
// shared-subtree override: when HasOverrideV is set, the external apply
// phase should substitute this scalar for V instead of running a real
// evaluation.
func (h NodeHandle) HasOverrideV() bool { return h.rec().HasOverrideV }
func (h NodeHandle) OverrideVToApplyFromTransposition() float64 {
	return h.rec().OverrideVToApplyFromTransposition
}

// ApplyEvaluation is the single-node primitive the external apply phase
// (spec.md §4, Apply; out of scope for the core otherwise) uses to turn
// a reserved leaf's evaluation into an actual N/W update: N is
// incremented by one completed visit and W by the value estimate v.
// Per spec.md §5, N and W are owned exclusively by that external phase
// during selection; this is a plain, non-atomic write, and callers that
// apply evaluations to the same node concurrently must serialize
// themselves (normal MCTS backup is single-threaded per path).
func (h NodeHandle) ApplyEvaluation(v float64) {
	rec := h.rec()
	rec.N++
	rec.W += v
}

// NumPolicyMoves returns the width of this node's child-slot window.
func (h NodeHandle) NumPolicyMoves() int32 { return h.rec().NumPolicyMoves }

// NumChildrenVisited returns one past the highest child slot index the
// distributor has picked so far (the width of the picked prefix), not a
// count of distinct picked slots. Accessed with sync/atomic, the same
// discipline as NInFlight: dispatchChildren writes it while holding the
// parent's expansion lock, but two concurrent selector ids legitimately
// revisit the same node from independent SelectNewLeafBatchlet calls, so
// an unsynchronized read here would race the lock-protected write.
func (h NodeHandle) NumChildrenVisited() int32 {
	return atomic.LoadInt32(&h.rec().NumChildrenVisited)
}

// NumChildrenExpanded returns how many child slots have been
// materialized into real node records. Same atomic-read discipline as
// NumChildrenVisited.
func (h NodeHandle) NumChildrenExpanded() int32 {
	return atomic.LoadInt32(&h.rec().NumChildrenExpanded)
}

// IsAnnotated delegates to the external annotator, per spec.md §4.2
// ("is_annotated() ... delegates to an external annotator").
func (h NodeHandle) IsAnnotated() bool {
	return h.ctx.Annotator.IsAnnotated(h)
}

// EnsureAnnotated calls Annotate if the node has not yet been annotated.
// Annotate itself must be idempotent; EnsureAnnotated additionally
// avoids the redundant call on the common already-annotated path.
func (h NodeHandle) EnsureAnnotated() error {
	if h.ctx.Annotator.IsAnnotated(h) {
		return nil
	}
	return h.ctx.Annotator.Annotate(h)
}

// SlotInParent returns this node's index into its parent's child
// descriptor, or -1 at the root.
func (h NodeHandle) SlotInParent() int32 {
	if h.IsRoot() {
		return -1
	}
	return h.rec().SlotInParent
}

// AllocatePolicySlots allocates NumPolicyMoves child slots for this node
// and records the priors. Called by Annotate when a node's legal move
// set (and policy priors) become known, and by the selector's
// materializeDeferred when it copies a transposition root's priors onto
// a deferred node; that second call does not take the expansion lock.
// Not safe to call concurrently on the same node.
func (h NodeHandle) AllocatePolicySlots(priors []float32) {
	rec := h.rec()
	n := int32(len(priors))
	rec.NumPolicyMoves = n
	if n == 0 {
		rec.ChildrenStart = NoIndex
		return
	}
	rec.ChildrenStart = h.ctx.Store.AllocChildren(n)
	for i, p := range priors {
		slot := h.ctx.Store.ChildSlotAt(rec, int32(i))
		slot.Prior = p
	}
}

// CreateChild materializes child slot slotIndex into a real node
// record, per C2's create_child contract. Must be called with the
// parent's expansion lock held; returns the existing child unchanged
// (and false) if another descent already won the race under the same
// lock acquisition discipline used by the selector.
func (h NodeHandle) CreateChild(slotIndex int32) (NodeHandle, bool) {
	rec := h.rec()
	slot := h.ctx.Store.ChildSlotAt(rec, slotIndex)
	if slot.Expanded {
		return h.ctx.Handle(slot.ChildIndex), false
	}

	childIdx := h.ctx.Store.allocNode()
	child := h.ctx.Store.Get(childIdx)
	child.ParentIndex = h.Index
	child.SlotInParent = slotIndex

	slot.ChildIndex = childIdx
	slot.Expanded = true

	atomic.AddInt32(&rec.NumChildrenExpanded, 1)

	return h.ctx.Handle(childIdx), true
}
