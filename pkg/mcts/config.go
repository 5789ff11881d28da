package mcts

// Config enumerates the external knobs of the parallel leaf selector
// (spec.md §6's Configuration table), constructed with the teacher's
// Limits builder-method style combined with the risk-agent searcher's
// functional-option pattern.
type Config struct {
	TranspositionMode TranspositionMode `yaml:"transposition_mode"`

	SelectParallelEnabled   bool `yaml:"select_parallel_enabled"`
	SelectParallelThreshold int  `yaml:"select_parallel_threshold"`

	RootPreloadDepth        int `yaml:"root_preload_depth"`
	MaxPreloadNodesPerBatch int `yaml:"max_preload_nodes_per_batch"`

	PaddedBatchSizing        bool    `yaml:"padded_batch_sizing"`
	PaddedExtraNodesBase     int     `yaml:"padded_extra_nodes_base"`
	PaddedExtraNodesMultiple float64 `yaml:"padded_extra_nodes_multiple"`

	CPUCTMultiplier float64 `yaml:"cpuct_multiplier"`

	NodeCapacity  int `yaml:"node_capacity"`
	ChildCapacity int `yaml:"child_capacity"`

	NWorkers int `yaml:"n_workers"`
}

// DefaultConfig mirrors the teacher's DefaultLimits(): every knob set to
// a conservative, search-disabling-nothing default.
func DefaultConfig() *Config {
	return &Config{
		TranspositionMode:       TranspositionNone,
		SelectParallelEnabled:   false,
		SelectParallelThreshold: 32,
		RootPreloadDepth:        1,
		MaxPreloadNodesPerBatch: 256,
		PaddedBatchSizing:       false,
		PaddedExtraNodesBase:    0,
		PaddedExtraNodesMultiple: 1.0,
		CPUCTMultiplier:         DefaultCPUCTMultiplier,
		NodeCapacity:            1 << 20,
		ChildCapacity:           1 << 22,
		NWorkers:                1,
	}
}

// SetTranspositionMode sets §4.5.1/§4.5.3's behavior selector.
func (c *Config) SetTranspositionMode(m TranspositionMode) *Config {
	c.TranspositionMode = m
	return c
}

// SetSelectParallel enables worker dispatch above threshold.
func (c *Config) SetSelectParallel(enabled bool, threshold int) *Config {
	c.SelectParallelEnabled = enabled
	if threshold > 0 {
		c.SelectParallelThreshold = threshold
	}
	return c
}

// SetPreload sets RootPreloadDepth and MaxPreloadNodesPerBatch. Only
// MaxPreloadNodesPerBatch affects leaf-list reservation sizing
// (preloadSize); RootPreloadDepth is stored but not read.
func (c *Config) SetPreload(rootDepth, maxPerBatch int) *Config {
	c.RootPreloadDepth = rootDepth
	c.MaxPreloadNodesPerBatch = maxPerBatch
	return c
}

// SetPaddedBatchSizing controls leaf-list reservation sizing.
func (c *Config) SetPaddedBatchSizing(enabled bool, base int, multiple float64) *Config {
	c.PaddedBatchSizing = enabled
	c.PaddedExtraNodesBase = base
	c.PaddedExtraNodesMultiple = multiple
	return c
}

// SetCPUCTMultiplier passes the uncertainty-feature-flag multiplier
// through to the PUCT scorer.
func (c *Config) SetCPUCTMultiplier(m float64) *Config {
	if m > 0 {
		c.CPUCTMultiplier = m
	}
	return c
}

// SetArenaCapacity sets the node/child capacities callers pass to
// NewStore (as cmd/leafbench does); NewSelector allocates no arena.
func (c *Config) SetArenaCapacity(nodeCapacity, childCapacity int) *Config {
	c.NodeCapacity = nodeCapacity
	c.ChildCapacity = childCapacity
	return c
}

// SetWorkers sizes the worker pool backing parallel dispatch.
func (c *Config) SetWorkers(n int) *Config {
	c.NWorkers = max(1, n)
	return c
}

// preloadSize estimates the leaf-list capacity to reserve up front from
// the target visit count, MaxPreloadNodesPerBatch and the
// PaddedBatchSizing knobs, never returning less than target.
// RootPreloadDepth is not consulted.
func (c *Config) preloadSize(target int) int {
	size := target
	if c.PaddedBatchSizing {
		size = c.PaddedExtraNodesBase + int(float64(target)*c.PaddedExtraNodesMultiple)
	}
	if size > c.MaxPreloadNodesPerBatch {
		size = c.MaxPreloadNodesPerBatch
	}
	if size < target {
		size = target
	}
	return size
}
