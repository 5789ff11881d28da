package mcts

import (
	"sync"
	"sync/atomic"
)

// expansionLockShards sizes the sharded per-parent expansion-lock table.
// Two descents expanding different slots of the same parent must
// serialize (spec.md §5). The lock is picked by parent index modulo the
// shard count, so two parents whose indices collide share one mutex and
// their expansions serialize too; the table is sized generously relative
// to typical batchlet fan-out rather than one mutex per node.
const expansionLockShards = 4096

// Store is the flat, index-addressed arena of NodeRecords (spec.md §3,
// §4.1). Capacity is fixed at construction: nodes are never freed during
// a search, only cleared between searches via Reset, matching the
// "arena is cleared between searches" lifecycle note.
type Store struct {
	nodes    []NodeRecord
	children []ChildSlot

	nodeLen  atomic.Uint32
	childLen atomic.Uint32

	expandLocks [expansionLockShards]sync.Mutex
}

// NewStore allocates an arena with room for nodeCapacity node records and
// childCapacity child slots.
func NewStore(nodeCapacity, childCapacity int) *Store {
	return &Store{
		nodes:    make([]NodeRecord, nodeCapacity),
		children: make([]ChildSlot, childCapacity),
	}
}

// Reset clears the arena for a new search. Existing NodeHandles become
// invalid; callers must not retain them across a Reset.
func (s *Store) Reset() {
	s.nodeLen.Store(0)
	s.childLen.Store(0)
}

// Len reports how many node records are currently allocated.
func (s *Store) Len() int {
	return int(s.nodeLen.Load())
}

// NewRoot allocates and returns the index of a fresh root node.
func (s *Store) NewRoot(zobrist uint64) NodeIndex {
	idx := s.allocNode()
	rec := s.Get(idx)
	rec.ParentIndex = NoIndex
	rec.ZobristHash = zobrist
	return idx
}

// allocNode reserves one node slot via a lock-free fetch-add, per the
// arena's atomic-counter allocation discipline (mirrors the NInFlight
// atomics used everywhere else in this package).
func (s *Store) allocNode() NodeIndex {
	idx := s.nodeLen.Add(1) - 1
	if int(idx) >= len(s.nodes) {
		panic("mcts: node arena exhausted")
	}
	s.nodes[idx] = NodeRecord{}
	return NodeIndex(idx)
}

// AllocChildren reserves a contiguous run of nSlots child slots and
// returns the base index, per C1's alloc_children contract.
func (s *Store) AllocChildren(nSlots int32) NodeIndex {
	if nSlots <= 0 {
		return NoIndex
	}
	start := s.childLen.Add(uint32(nSlots)) - uint32(nSlots)
	if int(start)+int(nSlots) > len(s.children) {
		panic("mcts: child arena exhausted")
	}
	for i := int32(0); i < nSlots; i++ {
		s.children[int(start)+int(i)] = ChildSlot{}
	}
	return NodeIndex(start)
}

// Get returns a pointer to the node record at idx. Callers must hold the
// discipline described in spec.md §5: atomic fields may be read/written
// concurrently, stable fields (NumPolicyMoves, ZobristHash, Terminal)
// only after the owning annotate/expand call has completed, and
// expansion mutations only inside the per-parent expansion lock.
func (s *Store) Get(idx NodeIndex) *NodeRecord {
	return &s.nodes[idx]
}

// ChildSlotAt returns a pointer to child slot i of parent's descriptor.
func (s *Store) ChildSlotAt(parent *NodeRecord, i int32) *ChildSlot {
	return &s.children[int(parent.ChildrenStart)+int(i)]
}

// ExpandLock returns the sharded mutex serializing child expansion for
// the given parent index.
func (s *Store) ExpandLock(parent NodeIndex) *sync.Mutex {
	return &s.expandLocks[uint32(parent)%expansionLockShards]
}

// ModifyParentsChildRef atomically relinks parentIdx's child slot at
// slotIndex to point at newChild, per C1's modify_parents_child_ref
// contract. Used by master-swap (§4.5.3). Must be called with the
// parent's expansion lock held by the caller when racing with ordinary
// expansion, which the selector guarantees.
func (s *Store) ModifyParentsChildRef(parentIdx NodeIndex, slotIndex int32, newChild NodeIndex) {
	parent := s.Get(parentIdx)
	slot := s.ChildSlotAt(parent, slotIndex)
	slot.ChildIndex = newChild
	slot.Expanded = true
}
