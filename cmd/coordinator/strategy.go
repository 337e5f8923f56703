package main

import (
	"fmt"

	"github.com/dreamware/swarmweave/internal/cluster"
	"github.com/dreamware/swarmweave/internal/config"
	"github.com/dreamware/swarmweave/internal/coordinator"
	"github.com/dreamware/swarmweave/internal/protocol"
	"github.com/dreamware/swarmweave/internal/strategy"
	"github.com/dreamware/swarmweave/internal/supervisor"
)

// buildStrategy translates a StrategyConfig into the concrete
// internal/strategy engine it names, wiring in the sender/supervisor every
// strategy variant that needs one to dispatch LOAD_SHARD commands or spawn
// worker processes.
func buildStrategy(cfg config.StrategyConfig, cl cluster.Config, sender protocol.Sender, sup *supervisor.Supervisor, selfID string) (coordinator.Strategy, error) {
	switch cfg.Name {
	case "", "fail_fast":
		return strategy.FailFast{}, nil
	case "wait_and_retry":
		return strategy.WaitAndRetry{
			Timeout:  cfg.WaitAndRetryTimeoutDuration(),
			Interval: cfg.WaitAndRetryIntervalDuration(),
		}, nil
	case "dynamic_loading":
		return strategy.DynamicLoading{
			Cluster:          cl,
			MinMemoryMB:      cfg.DynamicLoadingMinMemoryMB,
			MaxShardsPerNode: cfg.DynamicLoadingMaxPerNode,
			Sender:           sender,
			SelfID:           selfID,
		}, nil
	case "spawn_nodes":
		return strategy.SpawnNodes{
			MaxNodes:           cfg.SpawnNodesMaxNodes,
			NodeStartupTimeout: cfg.SpawnNodesStartupTimeoutDuration(),
			Supervisor:         sup,
		}, nil
	case "single_node_fallback":
		return strategy.SingleNodeFallback{RequiredMemoryMB: cfg.SingleNodeFallbackMemoryMB, TotalLayers: cl.TotalLayers}, nil
	case "adaptive":
		return strategy.Adaptive{
			DynamicLoading: strategy.DynamicLoading{
				Cluster:          cl,
				MinMemoryMB:      cfg.DynamicLoadingMinMemoryMB,
				MaxShardsPerNode: cfg.DynamicLoadingMaxPerNode,
				Sender:           sender,
				SelfID:           selfID,
			},
			WaitAndRetry: strategy.WaitAndRetry{
				Timeout:  cfg.WaitAndRetryTimeoutDuration(),
				Interval: cfg.WaitAndRetryIntervalDuration(),
			},
			SpawnNodes: strategy.SpawnNodes{
				MaxNodes:           cfg.SpawnNodesMaxNodes,
				NodeStartupTimeout: cfg.SpawnNodesStartupTimeoutDuration(),
				Supervisor:         sup,
			},
			SingleNodeFallback: strategy.SingleNodeFallback{RequiredMemoryMB: cfg.SingleNodeFallbackMemoryMB, TotalLayers: cl.TotalLayers},
		}, nil
	default:
		return nil, fmt.Errorf("coordinator: unknown strategy %q", cfg.Name)
	}
}
