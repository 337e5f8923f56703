package strategy

import (
	"context"
	"fmt"

	"github.com/dreamware/swarmweave/internal/coordinator"
	"github.com/dreamware/swarmweave/internal/discovery"
)

// Adaptive folds DynamicLoading, WaitAndRetry, SpawnNodes and
// SingleNodeFallback into one strategy, tried in that fixed order. The
// first to succeed wins; if all fail, Adaptive returns the last error.
//
// Each phase is handed only the missing set the Discovery Index reports at
// the moment that phase starts — never the original request's missing
// set — so a phase that partially fills the pipeline narrows what the next
// phase has to do, and the composite cannot recurse unboundedly.
type Adaptive struct {
	DynamicLoading     DynamicLoading
	WaitAndRetry       WaitAndRetry
	SpawnNodes         SpawnNodes
	SingleNodeFallback SingleNodeFallback
}

// Resolve implements coordinator.Strategy.
func (a Adaptive) Resolve(ctx context.Context, idx *discovery.Index, priority discovery.Priority, missing []int) (coordinator.Resolution, error) {
	phases := []struct {
		name string
		run  coordinator.Strategy
	}{
		{"dynamic_loading", a.DynamicLoading},
		{"wait_and_retry", a.halvedWait()},
		{"spawn_nodes", a.SpawnNodes},
		{"single_node_fallback", a.SingleNodeFallback},
	}

	var lastErr error
	for _, phase := range phases {
		status := idx.GetStatus()
		if status.IsComplete {
			return coordinator.Resolution{Pipeline: idx.Pipeline(priority), StrategyUsed: "pipeline"}, nil
		}
		resolution, err := phase.run.Resolve(ctx, idx, priority, status.Missing)
		if err == nil {
			return resolution, nil
		}
		lastErr = fmt.Errorf("%s: %w", phase.name, err)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no phases configured")
	}
	return coordinator.Resolution{}, fmt.Errorf("strategy: adaptive: all phases exhausted: %w", lastErr)
}

// halvedWait returns the WaitAndRetry phase with its timeout cut in half —
// Adaptive only waits passively for part of its overall budget before
// escalating to spawning new nodes.
func (a Adaptive) halvedWait() WaitAndRetry {
	w := a.WaitAndRetry
	w.Timeout = w.Timeout / 2
	return w
}
