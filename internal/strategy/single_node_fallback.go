package strategy

import (
	"context"
	"fmt"

	"github.com/dreamware/swarmweave/internal/cluster"
	"github.com/dreamware/swarmweave/internal/coordinator"
	"github.com/dreamware/swarmweave/internal/discovery"
)

// SingleNodeFallback routes the whole request to a single node holding the
// complete model, bypassing the pipeline entirely. It is the last resort:
// quality and throughput both drop, but the request still completes.
type SingleNodeFallback struct {
	RequiredMemoryMB int64
	TotalLayers      int
}

// Resolve implements coordinator.Strategy. missing is ignored: a node
// qualifies by capacity alone, not by which shards the index is missing.
func (s SingleNodeFallback) Resolve(_ context.Context, idx *discovery.Index, priority discovery.Priority, _ []int) (coordinator.Resolution, error) {
	var best cluster.ShardAnnouncement
	found := false
	bestScore := -1.0

	for _, a := range idx.Replicas() {
		if a.Capabilities.AvailMemoryMB < s.RequiredMemoryMB {
			continue
		}
		sc := nodeScore(a, priority)
		if !found || sc > bestScore {
			best, bestScore, found = a, sc, true
		}
	}
	if !found {
		return coordinator.Resolution{}, fmt.Errorf("strategy: single_node_fallback: no node meets the %d MB memory floor", s.RequiredMemoryMB)
	}

	full := best
	full.LayerStart = 0
	full.LayerEnd = s.TotalLayers
	full.HasEmbeddings = true
	full.HasOutput = true
	return coordinator.Resolution{
		Pipeline:     []cluster.ShardAnnouncement{full},
		StrategyUsed: "single_node_fallback",
	}, nil
}

// nodeScore is a capability-only ranking: SingleNodeFallback has no
// per-shard quantization data to weigh, unlike discovery.Index's own
// priority scoring.
func nodeScore(a cluster.ShardAnnouncement, priority discovery.Priority) float64 {
	c := a.Capabilities
	cpuNorm := 1 - c.CPUUsagePercent/100
	memRatio := 0.0
	if c.TotalMemoryMB > 0 {
		memRatio = float64(c.AvailMemoryMB) / float64(c.TotalMemoryMB)
	}
	if priority == discovery.Memory {
		return memRatio
	}
	return 0.5*cpuNorm + 0.5*memRatio + c.Reputation*0.1
}
