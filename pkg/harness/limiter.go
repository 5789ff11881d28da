package harness

import (
	"context"
	"sync/atomic"
)

// StopReason records why a ThroughputArena worker stopped running
// batchlets. More than one bit may be set; Movetime and Cycles can both
// be exhausted on the same Ok() check.
type StopReason int

const (
	StopNone      StopReason = 0
	StopInterrupt StopReason = 1 << 0
	StopMovetime  StopReason = 1 << 1
	StopByteSize  StopReason = 1 << 2
	StopCycles    StopReason = 1 << 3
)

func (sr StopReason) String() string {
	if sr == StopNone {
		return "None"
	}
	names := []struct {
		flag StopReason
		name string
	}{
		{StopInterrupt, "Interrupt"},
		{StopMovetime, "Movetime"},
		{StopByteSize, "ByteSize"},
		{StopCycles, "Cycles"},
	}
	out := ""
	for _, n := range names {
		if sr&n.flag == n.flag {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	return out
}

// Limiter tracks one worker's progress against a shared Limits and
// decides when that worker should stop dispatching batchlets.
type Limiter struct {
	limits  *Limits
	timer   *wallTimer
	stop    atomic.Bool
	reason  StopReason
	ctx     context.Context
}

func NewLimiter() *Limiter {
	return &Limiter{
		limits: DefaultLimits(),
		timer:  newWallTimer(),
		ctx:    context.Background(),
	}
}

func (l *Limiter) SetContext(ctx context.Context) {
	l.ctx = ctx
}

func (l *Limiter) SetLimits(limits *Limits) {
	l.limits = limits
}

func (l *Limiter) Limits() *Limits {
	return l.limits
}

// Reset restarts the wall clock and clears any prior stop state. Called
// once per worker before its first batchlet.
func (l *Limiter) Reset() {
	l.timer.Movetime(l.limits.Movetime)
	l.timer.Reset()
	l.stop.Store(false)
	l.reason = StopNone
}

func (l *Limiter) SetStop(v bool) {
	l.stop.Store(v)
}

func (l *Limiter) Stop() bool {
	select {
	case <-l.ctx.Done():
		l.stop.Store(true)
	default:
	}
	return l.stop.Load()
}

// Elapsed returns milliseconds since the last Reset.
func (l *Limiter) Elapsed() int {
	return l.timer.Elapsed()
}

// Ok reports whether the worker may dispatch another batchlet, given its
// running count of completed batchlets and the node arena's current
// length (in records, converted to bytes by the caller).
func (l *Limiter) Ok(batches uint32, arenaBytes int64) bool {
	return l.EvaluateStopReason(batches, arenaBytes) == StopNone
}

// EvaluateStopReason computes and caches the reason this worker should
// stop, valid for inspection after the worker loop exits.
func (l *Limiter) EvaluateStopReason(batches uint32, arenaBytes int64) StopReason {
	reason := StopNone
	if l.Stop() {
		reason |= StopInterrupt
	}
	if !l.limits.Infinite {
		if l.timer.IsSet() && l.timer.IsEnd() {
			reason |= StopMovetime
		}
		if l.limits.ByteSize != DefaultByteSizeLimit && arenaBytes >= l.limits.ByteSize {
			reason |= StopByteSize
		}
		if l.limits.Cycles != DefaultCyclesLimit && batches >= l.limits.Cycles {
			reason |= StopCycles
		}
	}
	l.reason = reason
	return reason
}

func (l *Limiter) StopReason() StopReason {
	return l.reason
}
