package evalbridge

// FreshEvaluator always reports a miss: used when transposition/cache
// reuse is disabled, so every leaf goes to the external neural-network
// evaluator.
type FreshEvaluator struct{}

// NewFreshEvaluator returns the always-miss evaluator.
func NewFreshEvaluator() *FreshEvaluator { return &FreshEvaluator{} }

func (*FreshEvaluator) TryEvaluate(EvalContext) (EvalOutcome, bool) {
	return EvalOutcome{}, false
}

func (*FreshEvaluator) Reset() {}
