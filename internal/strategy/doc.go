// Package strategy implements the pluggable recovery policies the Pipeline
// Coordinator falls back to when the Discovery Index reports an incomplete
// pipeline: FailFast, WaitAndRetry, DynamicLoading, SpawnNodes,
// SingleNodeFallback, and Adaptive (a fixed-order composition of the
// others).
//
// Every strategy implements coordinator.Strategy and is deterministic given
// equal inputs: each sub-strategy inside Adaptive is handed only the
// currently-missing set at entry, never the original request's missing set,
// so the composite cannot recurse unboundedly.
package strategy
