package mcts

// PanicOnInvariantViolation controls whether a detected I1–I6 violation
// panics (the default) or is instead returned as ErrInvariantViolation
// by raiseInvariantViolation. Its only caller, ReleaseInFlight, has no
// error result and discards that error, so with the flag off an
// underflow goes unreported. Per spec.md §7 ("never swallow invariant
// violations in release builds by design"), production code should
// leave this at its default.
var PanicOnInvariantViolation = true

// DefaultCPUCTMultiplier is the multiplier passed through to the PUCT
// scorer when the caller does not override it (spec.md §6, "CPUCT
// multiplier from uncertainty feature flag").
var DefaultCPUCTMultiplier float64 = 1.0

// SetDefaultCPUCTMultiplier overrides DefaultCPUCTMultiplier for callers
// that never set Config.CPUCTMultiplier explicitly.
func SetDefaultCPUCTMultiplier(m float64) {
	if m > 0 {
		DefaultCPUCTMultiplier = m
	}
}
