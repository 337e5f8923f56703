package coordinator

import (
	"context"

	"github.com/dreamware/swarmweave/internal/cluster"
	"github.com/dreamware/swarmweave/internal/discovery"
)

// Resolution is a Strategy's successful outcome: a complete, ordered
// pipeline and the name recorded as InferenceResponse.StrategyUsed.
type Resolution struct {
	Pipeline     []cluster.ShardAnnouncement
	StrategyUsed string
}

// Strategy fills an incomplete pipeline's missing-set or returns a typed
// failure. Implementations live in internal/strategy; this interface lets
// the coordinator depend only on the shape, not the policy, of recovery.
type Strategy interface {
	Resolve(ctx context.Context, idx *discovery.Index, priority discovery.Priority, missing []int) (Resolution, error)
}
