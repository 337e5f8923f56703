// Package discovery maintains the freshness-bounded view of a cluster's
// shard replicas that the Pipeline Coordinator and Strategy Engine consult
// on every admission decision.
//
// # Overview
//
// The Discovery Index is rebuilt incrementally from inbound DHT records: one
// ShardAnnouncement per replica. It answers three questions cheaply and
// without a network round trip:
//
//   - which replicas currently exist for shard i, and are they fresh?
//   - which single replica of shard i should a given request's priority pick?
//   - is the cluster's pipeline complete — a replica present for every shard
//     0..N, with shard 0 offering embeddings and shard N-1 offering the
//     output head?
//
// # Concurrency
//
// Reads (BestFor, Pipeline, GetStatus) vastly outnumber writes (Ingest,
// Cleanup) in steady state, so the index is protected by a single
// sync.RWMutex: writers take the shortest possible critical section, then
// release before any scoring math runs.
package discovery
