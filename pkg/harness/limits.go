package harness

import (
	"encoding/json"
	"math"
	"strings"
)

// Limits bounds a ThroughputArena run the way the teacher's search Limits
// bounds a game tree search: by wall-clock, by a cycle count, or by arena
// growth, any combination of which can apply at once.
type Limits struct {
	Movetime int
	Cycles   uint32
	ByteSize int64
	Infinite bool
	NThreads int
}

func (l Limits) String() string {
	builder := strings.Builder{}
	_ = json.NewEncoder(&builder).Encode(l)
	return builder.String()
}

const (
	DefaultMovetimeLimit int    = -1
	DefaultByteSizeLimit int64  = -1
	DefaultCyclesLimit   uint32 = math.MaxInt32*2 + 1
)

// DefaultLimits returns an unbounded run: callers must call at least one
// of SetMovetime/SetCycles/SetByteSize to make EvaluateStopReason reach a
// StopReason other than StopInterrupt.
func DefaultLimits() *Limits {
	return &Limits{
		Movetime: DefaultMovetimeLimit,
		Cycles:   DefaultCyclesLimit,
		ByteSize: DefaultByteSizeLimit,
		Infinite: true,
		NThreads: 1,
	}
}

// SetMovetime bounds the run by wall-clock milliseconds.
func (l *Limits) SetMovetime(movetime int) *Limits {
	l.Movetime = movetime
	l.Infinite = false
	return l
}

// SetCycles bounds the run by the number of batchlets each worker may run.
func (l *Limits) SetCycles(cycles uint32) *Limits {
	l.Cycles = cycles
	l.Infinite = false
	return l
}

// SetByteSize bounds the run by the node arena's observed growth, in bytes.
func (l *Limits) SetByteSize(bytesize int64) *Limits {
	l.ByteSize = bytesize
	l.Infinite = false
	return l
}

// SetMbSize is SetByteSize in mebibytes.
func (l *Limits) SetMbSize(mb int) *Limits {
	return l.SetByteSize(int64(mb) * (1 << 20))
}

func (l *Limits) SetThreads(threads int) *Limits {
	l.NThreads = max(threads, 1)
	return l
}

func (l *Limits) SetInfinite(infinite bool) {
	l.Infinite = infinite
}

func (l *Limits) InfiniteSize() bool {
	return l.ByteSize == DefaultByteSizeLimit
}
