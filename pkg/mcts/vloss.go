package mcts

import "sync/atomic"

// GetNInFlight atomically reads the in-flight reservation for selector s
// on this node.
func (h NodeHandle) GetNInFlight(s SelectorID) int32 {
	return atomic.LoadInt32(&h.rec().NInFlight[s])
}

// ReserveInFlight adds k to NInFlight[s] on this single node and returns
// the value observed *before* the add, per §4.3/§4.5.2: a prior value of
// zero means this batchlet is the first descent to claim the node.
func (h NodeHandle) ReserveInFlight(s SelectorID, k int32) (prior int32) {
	rec := h.rec()
	return atomic.AddInt32(&rec.NInFlight[s], k) - k
}

// ReleaseInFlight subtracts k from NInFlight[s] on this single node,
// asserting the post-release value never underflows (I3).
func (h NodeHandle) ReleaseInFlight(s SelectorID, k int32) {
	rec := h.rec()
	v := atomic.AddInt32(&rec.NInFlight[s], -k)
	if v < 0 {
		raiseInvariantViolation("I3", "NInFlight underflow releasing reservation")
	}
}

// BackupDecrementInFlight undoes a reservation this descent made on
// this node and every ancestor up to the root, per §4.3's explicit
// abort-path contract. The selector's recursion reserves each node
// exactly once, at the moment gather descends into it, so unwinding a
// partial descent means releasing the same k starting at the point of
// abandonment and walking up.
func (h NodeHandle) BackupDecrementInFlight(s SelectorID, k int32) {
	cur := h
	for {
		cur.ReleaseInFlight(s, k)
		p, ok := cur.Parent()
		if !ok {
			return
		}
		cur = p
	}
}
