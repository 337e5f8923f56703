// Package coordinator implements the Pipeline Coordinator: it turns an
// InferenceRequest into an InferenceResponse by consulting the Discovery
// Index for a complete ordered pipeline (falling back to a Strategy when
// shards are missing), then driving the per-stage EXECUTE_TASK RPC sequence
// and aggregating per-shard latencies.
//
// # Architecture
//
//	┌──────────────────────────────────────┐
//	│            Coordinator               │
//	├──────────────────────────────────────┤
//	│  DemandTracker   — per-shard scoring  │
//	│  PendingTable    — request_id matching│
//	│  discovery.Index — pipeline source    │
//	│  Strategy        — fills missing set  │
//	└──────────────────────────────────────┘
//
// # Admission
//
// Submit first updates demand counters for any shard the DiscoveryIndex
// currently reports missing (steering joining nodes toward scarce shards),
// then either executes the snapshotted pipeline immediately (the fast path,
// when the index is already complete) or hands the missing set to a
// Strategy.
//
// # Per-peer request/response matching
//
// The PendingTable is keyed by each EXECUTE_TASK command's own request_id,
// never by a transport-level identifier — the only reliable key across a
// connection-oriented transport. The Coordinator's table is private: a
// stage's response arrives as the return of Sender.Send, which sendStage
// hands to PendingTable.Resolve (or Fail on a send error), and a missed
// deadline fills the same single-use slot with a timeout response.
//
// # Concurrency
//
// Multiple requests may be in flight concurrently; each owns its own frozen
// pipeline snapshot and runs its stages strictly in order. Cross-request
// parallelism is unbounded — Submit itself does no locking beyond what the
// shared DiscoveryIndex, demand tracker, and pending-response table already
// provide with short critical sections.
package coordinator
