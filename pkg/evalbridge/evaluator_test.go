package evalbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreshEvaluatorAlwaysMisses(t *testing.T) {
	e := NewFreshEvaluator()

	outcome, ok := e.TryEvaluate(EvalContext{ZobristHash: 42})
	assert.False(t, ok)
	assert.Equal(t, EvalOutcome{}, outcome)

	e.Reset() // must not panic; nothing to reset
}

func TestReuseOtherTreeEvaluatorHitAndMiss(t *testing.T) {
	store := map[uint64]struct {
		outcome EvalOutcome
		ctx     EvalContext
	}{
		7: {outcome: EvalOutcome{V: 0.5, WinP: 0.6, LossP: 0.4}, ctx: EvalContext{NetworkDefID: "net-a"}},
	}
	lookup := func(z uint64) (EvalOutcome, EvalContext, bool) {
		v, ok := store[z]
		return v.outcome, v.ctx, ok
	}
	compatible := func(a, b EvalContext) bool { return a.NetworkDefID == b.NetworkDefID }

	self := EvalContext{NetworkDefID: "net-a"}
	eval := NewReuseOtherTreeEvaluator(self, compatible, lookup)

	outcome, ok := eval.TryEvaluate(EvalContext{ZobristHash: 7, NetworkDefID: "net-a"})
	require.True(t, ok)
	assert.Equal(t, 0.5, outcome.V)
	assert.EqualValues(t, 1, eval.Hits())
	assert.EqualValues(t, 0, eval.Misses())

	_, ok = eval.TryEvaluate(EvalContext{ZobristHash: 999, NetworkDefID: "net-a"})
	assert.False(t, ok)
	assert.EqualValues(t, 1, eval.Misses())
}

func TestReuseOtherTreeEvaluatorDetectsIncompatibility(t *testing.T) {
	lookup := func(z uint64) (EvalOutcome, EvalContext, bool) {
		return EvalOutcome{V: 1}, EvalContext{NetworkDefID: "net-b"}, true
	}
	compatible := func(a, b EvalContext) bool { return a.NetworkDefID == b.NetworkDefID }

	eval := NewReuseOtherTreeEvaluator(EvalContext{NetworkDefID: "net-a"}, compatible, lookup)

	_, ok := eval.TryEvaluate(EvalContext{ZobristHash: 1, NetworkDefID: "net-a"})
	assert.False(t, ok)
	assert.EqualValues(t, 1, eval.Misses())

	mismatch := eval.FirstIncompatibility()
	require.NotNil(t, mismatch)
	assert.Equal(t, "net-a", mismatch.Want)
	assert.Equal(t, "net-b", mismatch.Got)

	// A second mismatch must not replace the first.
	_, _ = eval.TryEvaluate(EvalContext{ZobristHash: 2, NetworkDefID: "net-a"})
	assert.Equal(t, mismatch, eval.FirstIncompatibility())
}

func TestReuseOtherTreeEvaluatorResetClearsCountersAndMismatch(t *testing.T) {
	lookup := func(z uint64) (EvalOutcome, EvalContext, bool) {
		return EvalOutcome{}, EvalContext{NetworkDefID: "net-b"}, true
	}
	compatible := func(a, b EvalContext) bool { return false }

	eval := NewReuseOtherTreeEvaluator(EvalContext{NetworkDefID: "net-a"}, compatible, lookup)
	_, _ = eval.TryEvaluate(EvalContext{ZobristHash: 1})

	require.NotNil(t, eval.FirstIncompatibility())
	eval.Reset()

	assert.EqualValues(t, 0, eval.Hits())
	assert.EqualValues(t, 0, eval.Misses())
	assert.Nil(t, eval.FirstIncompatibility())
}
