package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/swarmweave/internal/cluster"
	"github.com/dreamware/swarmweave/internal/dht"
	"github.com/dreamware/swarmweave/internal/discovery"
)

func testCfg() cluster.Config {
	return cluster.Config{Name: "c", ModelName: "m", ShardCount: 2, TotalLayers: 10}
}

func announce(t *testing.T, idx *discovery.Index, cfg cluster.Config, shardID int) {
	t.Helper()
	lr := cfg.LayerRangeFor(shardID)
	ann := cluster.ShardAnnouncement{
		PeerID: peer.ID(fmt.Sprintf("spawned-shard-%d", shardID)), ShardID: shardID,
		LayerStart: lr.Start, LayerEnd: lr.End,
		HasEmbeddings: shardID == 0, HasOutput: shardID == cfg.ShardCount-1,
		Version: cluster.RecordSchemaVersion, AnnouncedAt: time.Now(),
	}
	val, err := json.Marshal(ann)
	require.NoError(t, err)
	require.NoError(t, idx.Ingest(dht.Record{Key: cfg.RecordKey(shardID), Value: val}, 0))
}

func TestSpawnIsIdempotent(t *testing.T) {
	cfg := testCfg()
	idx := discovery.New(cfg, time.Hour, nil)
	sup := New(Config{WorkerBinary: "sleep", WorkerArgs: []string{"5"}}, idx)

	id1, err := sup.Spawn(context.Background(), 1)
	require.NoError(t, err)
	id2, err := sup.Spawn(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	require.NoError(t, sup.Terminate(context.Background(), 1))
}

func TestWaitOnlineReturnsOnceIndexShowsShard(t *testing.T) {
	cfg := testCfg()
	idx := discovery.New(cfg, time.Hour, nil)
	sup := New(Config{WorkerBinary: "true"}, idx)

	_, err := sup.Spawn(context.Background(), 1)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- sup.WaitOnline(context.Background(), 1, time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	announce(t, idx, cfg, 1)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected WaitOnline to observe the announcement")
	}
}

func TestWaitOnlineTimesOutWhenNeverAnnounced(t *testing.T) {
	cfg := testCfg()
	idx := discovery.New(cfg, time.Hour, nil)
	sup := New(Config{WorkerBinary: "true"}, idx)

	_, err := sup.Spawn(context.Background(), 1)
	require.NoError(t, err)

	err = sup.WaitOnline(context.Background(), 1, 50*time.Millisecond)
	require.Error(t, err)
}

func TestTerminateIsIdempotentForUnknownShard(t *testing.T) {
	cfg := testCfg()
	idx := discovery.New(cfg, time.Hour, nil)
	sup := New(Config{WorkerBinary: "true"}, idx)

	require.NoError(t, sup.Terminate(context.Background(), 99))
}
