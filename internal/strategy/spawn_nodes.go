package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/dreamware/swarmweave/internal/coordinator"
	"github.com/dreamware/swarmweave/internal/discovery"
)

// DefaultNodeStartupTimeout bounds how long SpawnNodes waits for a freshly
// spawned worker to reach the Discovery Index.
const DefaultNodeStartupTimeout = 30 * time.Second

// Supervisor spawns and tears down worker processes. Crash detection is the
// caller's responsibility via the Discovery Index — a Supervisor never
// polls process status itself.
type Supervisor interface {
	Spawn(ctx context.Context, shardID int) (nodeID string, err error)
	WaitOnline(ctx context.Context, shardID int, timeout time.Duration) error
	Terminate(ctx context.Context, shardID int) error
}

// SpawnNodes spawns at most MaxNodes worker processes, one per missing
// shard-id, to fill the gaps the Discovery Index reports. A child that
// fails to spawn or never comes online still counts against MaxNodes; it
// does not abort the rest of the batch.
type SpawnNodes struct {
	MaxNodes           int
	NodeStartupTimeout time.Duration
	Supervisor         Supervisor
}

// Resolve implements coordinator.Strategy.
func (s SpawnNodes) Resolve(ctx context.Context, idx *discovery.Index, priority discovery.Priority, missing []int) (coordinator.Resolution, error) {
	if s.Supervisor == nil {
		return coordinator.Resolution{}, fmt.Errorf("strategy: spawn_nodes: no supervisor configured")
	}
	max := s.MaxNodes
	if max <= 0 {
		max = len(missing)
	}
	timeout := s.NodeStartupTimeout
	if timeout <= 0 {
		timeout = DefaultNodeStartupTimeout
	}

	attempts := 0
	var lastErr error
	for _, shardID := range missing {
		if attempts >= max {
			break
		}
		status := idx.GetStatus()
		if !containsInt(status.Missing, shardID) {
			continue // filled by an earlier spawn or a concurrent loader
		}
		attempts++

		if _, err := s.Supervisor.Spawn(ctx, shardID); err != nil {
			lastErr = fmt.Errorf("spawn shard %d: %w", shardID, err)
			continue
		}
		if err := s.Supervisor.WaitOnline(ctx, shardID, timeout); err != nil {
			lastErr = fmt.Errorf("wait online shard %d: %w", shardID, err)
			continue
		}
	}

	status := idx.GetStatus()
	if !status.IsComplete {
		if lastErr == nil {
			lastErr = fmt.Errorf("spawned %d node(s), still missing %v", attempts, status.Missing)
		}
		return coordinator.Resolution{}, fmt.Errorf("strategy: spawn_nodes: %w", lastErr)
	}
	return coordinator.Resolution{Pipeline: idx.Pipeline(priority), StrategyUsed: "pipeline"}, nil
}
