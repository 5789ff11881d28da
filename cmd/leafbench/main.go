// leafbench drives repeated leaf-selection batchlets against the
// gridgame demo domain and prints colorized per-batch and summary
// stats, grounded on the teacher's examples/chess/main.go CLI shape
// (flags, then a search/print loop) and using
// github.com/muesli/termenv for colored terminal output the same way
// the teacher's go.mod declares it.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/muesli/termenv"

	"github.com/corvid-engine/mctscore/examples/gridgame"
	"github.com/corvid-engine/mctscore/pkg/evalbridge"
	"github.com/corvid-engine/mctscore/pkg/mcts"
	"github.com/corvid-engine/mctscore/pkg/workerpool"
)

// gridgameNetworkDefID tags both the -reuse evaluator's own context and
// every outcome its lookup returns, so a ReuseOtherTreeEvaluator wired to this process's own
// roots always finds itself compatible; a real deployment reusing
// across two distinct search processes would tag each with the actual
// network definition in play.
const gridgameNetworkDefID = "gridgame-heuristic"

func main() {
	var (
		visits        = flag.Int("visits", 64, "target leaves per batchlet")
		batches       = flag.Int("batches", 20, "number of batchlets to run")
		parallel      = flag.Bool("parallel", false, "enable worker dispatch for sub-descents")
		threshold     = flag.Int("threshold", 8, "SelectParallelThreshold")
		workers       = flag.Int("workers", 4, "worker pool size when -parallel is set")
		transposition = flag.String("transposition", "none", "none|deferred|shared")
		cpuct         = flag.Float64("cpuct", 1.0, "CPUCT multiplier passed to the scorer")
		configPath    = flag.String("config", "", "optional YAML file overriding the defaults above")
		reuse         = flag.Bool("reuse", false, "wire a ReuseOtherTreeEvaluator against this run's own transposition roots")
	)
	flag.Parse()

	cfg := mcts.DefaultConfig().
		SetSelectParallel(*parallel, *threshold).
		SetCPUCTMultiplier(*cpuct)
	cfg.TranspositionMode = parseTranspositionMode(*transposition)
	cfg.NWorkers = *workers

	if *configPath != "" {
		loaded, err := mcts.LoadConfigYAMLFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, styleErr("failed to load config: "+err.Error()))
			os.Exit(1)
		}
		cfg = loaded
	}

	store := mcts.NewStore(cfg.NodeCapacity, cfg.ChildCapacity)
	annotator := gridgame.NewAnnotator()
	scorer := gridgame.NewScorer()
	roots := gridgame.NewRoots()

	ctx := mcts.NewContext(store, annotator, scorer, roots, cfg)
	root := ctx.Root(0)
	annotator.SeedRoot(root, gridgame.NewPosition())

	var reuseEvaluator *evalbridge.ReuseOtherTreeEvaluator
	if *reuse {
		reuseEvaluator = evalbridge.NewReuseOtherTreeEvaluator(
			evalbridge.EvalContext{NetworkDefID: gridgameNetworkDefID},
			func(a, b evalbridge.EvalContext) bool { return a.NetworkDefID == b.NetworkDefID },
			func(zobrist uint64) (evalbridge.EvalOutcome, evalbridge.EvalContext, bool) {
				idx, ok := roots.Lookup(zobrist)
				if !ok {
					return evalbridge.EvalOutcome{}, evalbridge.EvalContext{}, false
				}
				h := ctx.Handle(idx)
				outcome := evalbridge.EvalOutcome{V: h.WinP()*2 - 1, WinP: h.WinP(), LossP: h.LossP()}
				return outcome, evalbridge.EvalContext{NetworkDefID: gridgameNetworkDefID}, true
			},
		)
		ctx.WithEvaluator(reuseEvaluator)
	}

	var pool workerpool.Pool = workerpool.NewInlinePool()
	if cfg.SelectParallelEnabled {
		pool = workerpool.NewGoroutinePool(cfg.NWorkers)
	}
	defer pool.Shutdown()

	selector := mcts.NewSelector(ctx, pool)

	fmt.Println(styleHeader(fmt.Sprintf(
		"leafbench: %d batches x %d visits, transposition=%s, parallel=%v",
		*batches, *visits, *transposition, cfg.SelectParallelEnabled,
	)))

	totalLeaves := 0
	started := time.Now()

	for i := 0; i < *batches; i++ {
		batchStart := time.Now()
		result := selector.SelectNewLeafBatchlet(root, mcts.Selector0, *visits, 1.0)

		for _, leaf := range result.Leaves {
			v := leafValue(leaf)
			gridgame.Backpropagate(leaf, mcts.Selector0, v)
			roots.Observe(leaf.ZobristHash(), leaf.Index)
		}

		totalLeaves += len(result.Leaves)
		elapsed := time.Since(batchStart)

		fmt.Printf("%s leaves=%-4d faults=%-2d root.N=%-6d elapsed=%s\n",
			styleBatch(fmt.Sprintf("[batch %3d]", i)),
			len(result.Leaves), len(result.Faults), root.N(), elapsed,
		)

		for _, fault := range result.Faults {
			fmt.Println(styleErr(fault.Error()))
		}

		selector.Reset()
	}

	total := time.Since(started)
	fmt.Println(styleHeader(fmt.Sprintf(
		"done: %d leaves in %s (%.1f leaves/s), root.N=%d",
		totalLeaves, total, float64(totalLeaves)/total.Seconds(), root.N(),
	)))

	if reuseEvaluator != nil {
		fmt.Println(styleHeader(fmt.Sprintf(
			"reuse evaluator: hits=%d misses=%d", reuseEvaluator.Hits(), reuseEvaluator.Misses(),
		)))
	}
}

// leafValue stands in for the external neural-network evaluator: a
// terminal leaf is always a Loss for the side to move in gridgame
// (spec.md §4, Apply is explicitly out of scope for the core), and an
// unvisited leaf uses the heuristic value this demo's Annotator already
// cached as WinP/LossP.
func leafValue(h mcts.NodeHandle) float64 {
	if h.Terminal() != mcts.TerminalUnknown {
		return -1
	}
	return h.WinP()*2 - 1
}

func parseTranspositionMode(s string) mcts.TranspositionMode {
	switch s {
	case "deferred":
		return mcts.TranspositionSingleNodeDeferredCopy
	case "shared":
		return mcts.TranspositionSharedSubtree
	default:
		return mcts.TranspositionNone
	}
}

var (
	headerColor = termenv.ColorProfile().Color("6")
	batchColor  = termenv.ColorProfile().Color("4")
	errColor    = termenv.ColorProfile().Color("1")
)

func styleHeader(s string) string {
	return termenv.String(s).Foreground(headerColor).Bold().String()
}

func styleBatch(s string) string {
	return termenv.String(s).Foreground(batchColor).String()
}

func styleErr(s string) string {
	return termenv.String(s).Foreground(errColor).Bold().String()
}
