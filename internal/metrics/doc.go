// Package metrics owns swarmweave's own prometheus.Registry and the
// counters/gauges published on it, in the shape
// synnergy-network/core/system_health_logging.go's HealthLogger builds a
// registry and a fixed set of named metrics around a ledger/network/node.
// Here the thing being observed is a pipeline coordinator and its shard
// workers rather than a blockchain node.
package metrics
