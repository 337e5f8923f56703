package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/swarmweave/internal/cluster"
	"github.com/dreamware/swarmweave/internal/config"
	"github.com/dreamware/swarmweave/internal/worker"
)

func fakeEnv(vals map[string]string) func(string) string {
	return func(key string) string { return vals[key] }
}

func TestResolveIdentityDefaultsFromConfig(t *testing.T) {
	cfg := config.WorkerConfig{ShardID: 2, Listen: ":9090", Multiaddr: "http://peer:9090"}
	id := resolveIdentity(cfg, fakeEnv(nil))
	require.Equal(t, "worker-2", id.selfID.String())
	require.Equal(t, 2, id.shardID)
	require.Equal(t, ":9090", id.listen)
	require.Equal(t, "http://peer:9090", id.multiaddr)
}

func TestResolveIdentityAppliesSupervisorEnvOverrides(t *testing.T) {
	cfg := config.WorkerConfig{ShardID: 0, Listen: ":8081"}
	id := resolveIdentity(cfg, fakeEnv(map[string]string{
		"WORKER_ID":       "spawned-shard-3",
		"WORKER_SHARD_ID": "3",
		"WORKER_LISTEN":   ":9103",
	}))
	require.Equal(t, "spawned-shard-3", id.selfID.String())
	require.Equal(t, 3, id.shardID)
	require.Equal(t, ":9103", id.listen)
	require.Equal(t, "http://127.0.0.1:9103", id.multiaddr)
}

func TestResolveIdentityIgnoresGarbageShardID(t *testing.T) {
	cfg := config.WorkerConfig{ShardID: 1}
	id := resolveIdentity(cfg, fakeEnv(map[string]string{"WORKER_SHARD_ID": "not-a-number"}))
	require.Equal(t, 1, id.shardID)
}

func TestBuildWorkerConstructsInInitPhase(t *testing.T) {
	cfg := &config.Config{
		Cluster: cluster.Config{Name: "c", ModelName: "m", ShardCount: 2, TotalLayers: 10},
		Worker:  config.WorkerConfig{BlobDir: t.TempDir()},
	}
	id := resolveIdentity(cfg.Worker, fakeEnv(nil))

	w, err := buildWorker(cfg, id)
	require.NoError(t, err)
	require.NotNil(t, w)
	require.Equal(t, worker.PhaseInit, w.Phase())
}
