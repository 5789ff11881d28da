package mcts

import "github.com/corvid-engine/mctscore/pkg/evalbridge"

// Context bundles the arena and the external collaborators a
// NodeHandle needs to act on its own, per spec.md §4.2's description of
// a handle as "a copy-cheap value composed of (context, NodeIndex)".
// Handles never carry the annotator/scorer/roots individually; they
// reach them through the shared Context instead, so creating a handle
// stays a cheap value copy regardless of how many collaborators a
// search wires in.
type Context struct {
	Store     *Store
	Annotator Annotator
	Scorer    PUCTScorer
	Roots     TranspositionRoots
	Config    *Config

	// Evaluator is the C7 leaf evaluator bridge consulted by finishLeaf
	// before a freshly emitted leaf is handed to the external apply
	// phase (spec.md §6). Defaults to evalbridge.NewFreshEvaluator(),
	// which always misses, so a caller that never wires in a
	// ReuseOtherTreeEvaluator gets exactly the old always-miss behavior.
	Evaluator evalbridge.Evaluator
}

// NewContext wires a Store to its external collaborators.
func NewContext(store *Store, annotator Annotator, scorer PUCTScorer, roots TranspositionRoots, cfg *Config) *Context {
	return &Context{
		Store:     store,
		Annotator: annotator,
		Scorer:    scorer,
		Roots:     roots,
		Config:    cfg,
		Evaluator: evalbridge.NewFreshEvaluator(),
	}
}

// WithEvaluator swaps in ev as this context's C7 leaf evaluator bridge,
// following the same builder-method chaining idiom Config uses. Pass
// an *evalbridge.ReuseOtherTreeEvaluator to let leaves that already
// exist in another tree's store skip re-evaluation.
func (c *Context) WithEvaluator(ev evalbridge.Evaluator) *Context {
	c.Evaluator = ev
	return c
}

// Handle builds a NodeHandle for idx against this context.
func (c *Context) Handle(idx NodeIndex) NodeHandle {
	return NodeHandle{ctx: c, Index: idx}
}

// Root allocates a fresh root node and returns its handle.
func (c *Context) Root(zobrist uint64) NodeHandle {
	return c.Handle(c.Store.NewRoot(zobrist))
}
