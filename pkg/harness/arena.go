// Package harness runs repeated leaf-selection batchlets against two
// selector configurations and compares their throughput, adapted from
// the teacher's VersusArena (which played games between two MCTS
// configurations and tallied wins) into a benchmark that tallies leaves
// reserved per wall-clock second instead of game outcomes.
package harness

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// WorkloadFunc runs one unit of work for a single arm (typically one
// Selector.SelectNewLeafBatchlet call plus the apply phase that advances
// N/W so the tree keeps growing) and reports how many leaves it produced
// and the arm's current node-arena footprint in bytes, for Limits'
// ByteSize bound.
type WorkloadFunc func() (leaves int, arenaBytes int64)

type armStats struct {
	batches atomic.Int64
	leaves  atomic.Int64
}

// ArmResult is one arm's final tally, per DESIGN.md's adaptation of
// VersusSummaryInfo from a win/loss/draw count to a throughput count.
type ArmResult struct {
	Name    string
	Batches int64
	Leaves  int64
	Elapsed time.Duration
}

// LeavesPerSecond is the metric ThroughputArena exists to compare.
func (r ArmResult) LeavesPerSecond() float64 {
	secs := r.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.Leaves) / secs
}

// ThroughputArena runs ArmA and ArmB side by side across NThreads
// workers, alternating which arm each worker calls first each cycle (the
// same fairness trick as the teacher's coin-flip over which player moves
// first), until Limits stops every worker.
type ThroughputArena struct {
	ArmA, ArmB   WorkloadFunc
	NameA, NameB string
	NThreads     int
	Limits       *Limits

	statsA, statsB armStats
	ctx            context.Context
	listener       Listener
}

// NewThroughputArena builds an arena with the teacher's default shape:
// two threads, one second of wall-clock time shared by both arms.
func NewThroughputArena(nameA string, armA WorkloadFunc, nameB string, armB WorkloadFunc) *ThroughputArena {
	return &ThroughputArena{
		ArmA: armA, NameA: nameA,
		ArmB: armB, NameB: nameB,
		NThreads: 2,
		Limits:   DefaultLimits().SetMovetime(1000),
		ctx:      context.Background(),
		listener: NopListener{},
	}
}

func (a *ThroughputArena) WithContext(ctx context.Context) *ThroughputArena {
	a.ctx = ctx
	return a
}

func (a *ThroughputArena) WithListener(l Listener) *ThroughputArena {
	a.listener = l
	return a
}

func (a *ThroughputArena) Setup(limits *Limits, nThreads int) *ThroughputArena {
	a.Limits = limits
	a.NThreads = nThreads
	return a
}

// Run launches NThreads workers, via an errgroup.Group fan-out grounded
// on domino14-macondo/montecarlo.go's `g := errgroup.Group{}` +
// `g.Go(...)` sim-thread dispatch, and blocks until every worker stops
// and the summary callback has fired.
func (a *ThroughputArena) Run() {
	a.statsA = armStats{}
	a.statsB = armStats{}

	started := time.Now()
	g := errgroup.Group{}
	for i := 0; i < a.NThreads; i++ {
		id := i
		g.Go(func() error {
			a.worker(id)
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(started)
	a.listener.OnSummary(Summary{
		ArmA:    ArmResult{Name: a.NameA, Batches: a.statsA.batches.Load(), Leaves: a.statsA.leaves.Load(), Elapsed: elapsed},
		ArmB:    ArmResult{Name: a.NameB, Batches: a.statsB.batches.Load(), Leaves: a.statsB.leaves.Load(), Elapsed: elapsed},
		Workers: a.NThreads,
	})
}

func (a *ThroughputArena) worker(id int) {
	limiter := NewLimiter()
	limiter.SetContext(a.ctx)
	limiter.SetLimits(a.Limits)
	limiter.Reset()

	startedA := time.Now()
	startedB := time.Now()
	var batches uint32
	var arenaBytes int64

	for limiter.Ok(batches, arenaBytes) {
		var leavesA, leavesB int
		var bytesA, bytesB int64
		if batches%2 == 0 {
			leavesA, bytesA = a.ArmA()
			leavesB, bytesB = a.ArmB()
		} else {
			leavesB, bytesB = a.ArmB()
			leavesA, bytesA = a.ArmA()
		}
		a.statsA.batches.Add(1)
		a.statsA.leaves.Add(int64(leavesA))
		a.statsB.batches.Add(1)
		a.statsB.leaves.Add(int64(leavesB))

		batches++
		arenaBytes = max(bytesA, bytesB)

		a.listener.OnSample(Sample{
			WorkerID: id, Arm: a.NameA,
			Batches: int(a.statsA.batches.Load()), Leaves: int(a.statsA.leaves.Load()),
			ElapsedMs: int(time.Since(startedA).Milliseconds()),
		})
		a.listener.OnSample(Sample{
			WorkerID: id, Arm: a.NameB,
			Batches: int(a.statsB.batches.Load()), Leaves: int(a.statsB.leaves.Load()),
			ElapsedMs: int(time.Since(startedB).Milliseconds()),
		})
	}
}
