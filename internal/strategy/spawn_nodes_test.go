package strategy

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/swarmweave/internal/cluster"
	"github.com/dreamware/swarmweave/internal/discovery"
)

// fakeSupervisor simulates Spawn/WaitOnline by directly announcing the
// requested shard into the Discovery Index, standing in for a worker
// process that boots and publishes its own announcement.
type fakeSupervisor struct {
	t          *testing.T
	idx        *discovery.Index
	cfg        cluster.Config
	now        time.Time
	failShards map[int]bool

	mu      sync.Mutex
	spawned []int
}

func (f *fakeSupervisor) Spawn(_ context.Context, shardID int) (string, error) {
	f.mu.Lock()
	f.spawned = append(f.spawned, shardID)
	f.mu.Unlock()
	if f.failShards[shardID] {
		return "", fmt.Errorf("fake spawn failure for shard %d", shardID)
	}
	return fmt.Sprintf("node-%d", shardID), nil
}

func (f *fakeSupervisor) WaitOnline(_ context.Context, shardID int, _ time.Duration) error {
	announceShard(f.t, f.idx, f.cfg, shardID, fmt.Sprintf("spawned-%d", shardID), cluster.Capabilities{AvailMemoryMB: 8000}, f.now)
	return nil
}

func (f *fakeSupervisor) Terminate(context.Context, int) error { return nil }

func TestSpawnNodesFillsAllMissingShards(t *testing.T) {
	cfg := cluster.Config{Name: "c", ModelName: "m", ShardCount: 3, TotalLayers: 12}
	now := time.Now()
	idx := newIndexMissing(t, cfg, now, 1, 2)
	sup := &fakeSupervisor{t: t, idx: idx, cfg: cfg, now: now}

	s := SpawnNodes{MaxNodes: 2, Supervisor: sup}
	res, err := s.Resolve(context.Background(), idx, discovery.Balanced, []int{1, 2})
	require.NoError(t, err)
	require.Equal(t, "pipeline", res.StrategyUsed)
	require.Len(t, res.Pipeline, 3)
	require.ElementsMatch(t, []int{1, 2}, sup.spawned)
}

func TestSpawnNodesKeepsGoingAfterAFailedSpawn(t *testing.T) {
	cfg := cluster.Config{Name: "c", ModelName: "m", ShardCount: 3, TotalLayers: 12}
	now := time.Now()
	idx := newIndexMissing(t, cfg, now, 1, 2)
	sup := &fakeSupervisor{t: t, idx: idx, cfg: cfg, now: now, failShards: map[int]bool{1: true}}

	// Shard 1's spawn fails outright; SpawnNodes still attempts shard 2
	// rather than aborting the rest of the batch. The overall pipeline stays
	// incomplete (shard 1 never loaded), so Resolve still reports an error —
	// but both shards were attempted.
	s := SpawnNodes{MaxNodes: 2, Supervisor: sup}
	_, err := s.Resolve(context.Background(), idx, discovery.Balanced, []int{1, 2})
	require.Error(t, err)
	require.ElementsMatch(t, []int{1, 2}, sup.spawned)
}

func TestSpawnNodesReturnsErrorWhenCapExhaustedBeforeComplete(t *testing.T) {
	cfg := cluster.Config{Name: "c", ModelName: "m", ShardCount: 3, TotalLayers: 12}
	now := time.Now()
	idx := newIndexMissing(t, cfg, now, 1, 2)
	sup := &fakeSupervisor{t: t, idx: idx, cfg: cfg, now: now, failShards: map[int]bool{1: true, 2: true}}

	s := SpawnNodes{MaxNodes: 2, Supervisor: sup}
	_, err := s.Resolve(context.Background(), idx, discovery.Balanced, []int{1, 2})
	require.Error(t, err)
}
