package coordinator

import "sync"

// ShardDemand is the per-shard counters the demand score is derived from.
// Pending counts requests currently blocked on the shard being unavailable;
// Available counts nodes known to be able to serve it without a transfer;
// Loading counts chunk-transfer sessions already in flight for it.
type ShardDemand struct {
	Pending   int
	Available int
	Loading   int
}

// Score computes the demand score `10*pending - 5*available - 2*loading`;
// higher means "more needed", steering joining nodes toward scarce shards.
func (d ShardDemand) Score() int {
	return 10*d.Pending - 5*d.Available - 2*d.Loading
}

// DemandTracker holds live ShardDemand counters for every shard in a
// cluster, updated on each admission for whichever shards are currently
// missing from the DiscoveryIndex.
type DemandTracker struct {
	mu     sync.Mutex
	shards map[int]*ShardDemand
}

// NewDemandTracker creates an empty tracker.
func NewDemandTracker() *DemandTracker {
	return &DemandTracker{shards: make(map[int]*ShardDemand)}
}

// RecordPending increments the pending counter for each shard-id in
// missing, called once per admitted request that cannot be served
// immediately.
func (t *DemandTracker) RecordPending(missing []int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range missing {
		t.entryLocked(id).Pending++
	}
}

// Observe overwrites the available/loading counters for shardID, called by
// the Strategy Engine as it learns which nodes can serve or are already
// loading a missing shard.
func (t *DemandTracker) Observe(shardID, available, loading int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entryLocked(shardID)
	e.Available = available
	e.Loading = loading
}

// Release decrements the pending counter for shardID once it stops being
// missing (pipeline completed or the request was abandoned).
func (t *DemandTracker) Release(shardID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entryLocked(shardID)
	if e.Pending > 0 {
		e.Pending--
	}
}

// Score returns the current demand score for shardID.
func (t *DemandTracker) Score(shardID int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entryLocked(shardID).Score()
}

// Snapshot returns a copy of every tracked shard's current demand, keyed by
// shard-id.
func (t *DemandTracker) Snapshot() map[int]ShardDemand {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[int]ShardDemand, len(t.shards))
	for id, d := range t.shards {
		out[id] = *d
	}
	return out
}

func (t *DemandTracker) entryLocked(shardID int) *ShardDemand {
	e, ok := t.shards[shardID]
	if !ok {
		e = &ShardDemand{}
		t.shards[shardID] = e
	}
	return e
}
