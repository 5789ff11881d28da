// Package mcts implements the parallel PUCT leaf selector: a tree-parallel
// Monte Carlo Tree Search descent engine that collects batches of leaves
// for an external neural-network evaluator.
//
// The tree itself lives in a flat, index-addressed arena (Store). Selection
// runs the PUCT rule (via an externally supplied scorer) to split a target
// visit budget across children, reserves virtual-loss counters on the way
// down, and either emits a leaf, defers into a transposition, or recurses.
package mcts
