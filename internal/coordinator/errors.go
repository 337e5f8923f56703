package coordinator

import "fmt"

// InferenceFailed surfaces a pipeline stage's Error or Timeout outcome. The
// caller may resubmit; the coordinator never retries a stage transparently.
type InferenceFailed struct {
	ShardID int
	Reason  string
}

func (e *InferenceFailed) Error() string {
	return fmt.Sprintf("coordinator: inference failed at shard %d: %s", e.ShardID, e.Reason)
}

// ShardNotLoaded mirrors the worker-side rejection so callers can
// distinguish "not yet loaded" from a generic execution error.
type ShardNotLoaded struct {
	ShardID int
}

func (e *ShardNotLoaded) Error() string {
	return fmt.Sprintf("coordinator: shard %d not loaded", e.ShardID)
}
