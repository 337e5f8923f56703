package strategy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dreamware/swarmweave/internal/cluster"
	"github.com/dreamware/swarmweave/internal/coordinator"
	"github.com/dreamware/swarmweave/internal/discovery"
	"github.com/dreamware/swarmweave/internal/protocol"
)

// DefaultAnnounceWait bounds how long DynamicLoading waits for a freshly
// loaded shard to surface in the Discovery Index before giving up on it.
const DefaultAnnounceWait = 5 * time.Second

// DefaultAnnouncePoll is DynamicLoading's announce-wait poll interval.
const DefaultAnnouncePoll = 200 * time.Millisecond

// DynamicLoading issues LOAD_SHARD to existing peers that have spare memory
// and shard slots, round-robining across the qualifying set, and waits for
// each freshly loaded shard to surface in the Discovery Index before moving
// on to the next missing one.
type DynamicLoading struct {
	Cluster          cluster.Config
	MinMemoryMB      int64
	MaxShardsPerNode int
	Sender           protocol.Sender
	SelfID           string
	AnnounceWait     time.Duration
	PollInterval     time.Duration
	Clock            clock.Clock
}

type loadCandidate struct {
	peer        cluster.ShardAnnouncement
	loadedCount int
}

// Resolve implements coordinator.Strategy.
func (d DynamicLoading) Resolve(ctx context.Context, idx *discovery.Index, priority discovery.Priority, missing []int) (coordinator.Resolution, error) {
	c := d.Clock
	if c == nil {
		c = clock.New()
	}
	announceWait := d.AnnounceWait
	if announceWait <= 0 {
		announceWait = DefaultAnnounceWait
	}
	pollInterval := d.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultAnnouncePoll
	}

	candidates := d.candidates(idx)
	if len(candidates) == 0 {
		return coordinator.Resolution{}, fmt.Errorf("strategy: dynamic_loading: no qualifying node has %d MB free", d.MinMemoryMB)
	}

	next := 0
	for _, shardID := range missing {
		status := idx.GetStatus()
		if !containsInt(status.Missing, shardID) {
			continue // another in-flight load already covered it
		}

		target, ok := d.pickCandidate(candidates, &next)
		if !ok {
			return coordinator.Resolution{}, fmt.Errorf("strategy: dynamic_loading: no qualifying node left for shard %d", shardID)
		}

		infoHash, filename := d.blobIdentity(shardID)
		params := map[string]interface{}{
			"shard_id":   shardID,
			"model_name": target.peer.ModelName,
			"info_hash":  infoHash,
			"filename":   filename,
		}
		if src, ok := d.seedFor(idx, shardID); ok {
			params["source_addr"] = src.Multiaddr
		}
		cmd := protocol.CommandEnvelope{
			Command:   protocol.CmdLoadShard,
			RequestID: fmt.Sprintf("dynload-%d-%s", shardID, target.peer.PeerID),
			From:      d.SelfID,
			To:        target.peer.PeerID.String(),
			Timestamp: c.Now(),
			Params:    params,
		}
		resp, err := d.Sender.Send(ctx, target.peer.Multiaddr, cmd)
		if err != nil {
			return coordinator.Resolution{}, fmt.Errorf("strategy: dynamic_loading: load shard %d on %s: %w", shardID, target.peer.PeerID, err)
		}
		if resp.Status != protocol.StatusSuccess {
			return coordinator.Resolution{}, fmt.Errorf("strategy: dynamic_loading: shard %d load rejected: %s", shardID, resp.Error)
		}
		target.loadedCount++

		if err := d.awaitAnnounce(ctx, c, idx, shardID, announceWait, pollInterval); err != nil {
			return coordinator.Resolution{}, err
		}
	}

	status := idx.GetStatus()
	if !status.IsComplete {
		return coordinator.Resolution{}, fmt.Errorf("strategy: dynamic_loading: pipeline still incomplete after dispatch, missing %v", status.Missing)
	}
	return coordinator.Resolution{Pipeline: idx.Pipeline(priority), StrategyUsed: "pipeline"}, nil
}

// blobIdentity returns the authoritative info_hash/filename for shardID,
// computed once here from cluster config rather than re-derived by the
// loading worker from its own possibly-inconsistent local file state.
func (d DynamicLoading) blobIdentity(shardID int) (infoHash, filename string) {
	return fmt.Sprintf("%s-shard-%d", d.Cluster.Name, shardID), fmt.Sprintf("shard-%d.bin", shardID)
}

// seedFor looks for a peer already announcing shardID to hand the loading
// worker a concrete source_addr to chunk-transfer from. A genuinely missing
// shard has no such peer, in which case the loading worker must already
// hold the blob named by blobIdentity locally.
func (d DynamicLoading) seedFor(idx *discovery.Index, shardID int) (cluster.ShardAnnouncement, bool) {
	for _, a := range idx.Replicas() {
		if a.ShardID == shardID {
			return a, true
		}
	}
	return cluster.ShardAnnouncement{}, false
}

// candidates aggregates the Discovery Index's per-shard replicas into a
// per-peer view so DynamicLoading can reason about a node's total loaded
// shard count and available memory rather than one shard at a time.
func (d DynamicLoading) candidates(idx *discovery.Index) []*loadCandidate {
	loaded := map[string]int{}
	seen := map[string]cluster.ShardAnnouncement{}
	for _, a := range idx.Replicas() {
		key := a.PeerID.String()
		loaded[key]++
		seen[key] = a
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]*loadCandidate, 0, len(keys))
	for _, key := range keys {
		a := seen[key]
		if a.Capabilities.AvailMemoryMB < d.MinMemoryMB {
			continue
		}
		if d.MaxShardsPerNode > 0 && loaded[key] >= d.MaxShardsPerNode {
			continue
		}
		out = append(out, &loadCandidate{peer: a, loadedCount: loaded[key]})
	}
	return out
}

func (d DynamicLoading) pickCandidate(candidates []*loadCandidate, next *int) (*loadCandidate, bool) {
	for i := 0; i < len(candidates); i++ {
		pos := (*next + i) % len(candidates)
		cand := candidates[pos]
		if d.MaxShardsPerNode <= 0 || cand.loadedCount < d.MaxShardsPerNode {
			*next = pos + 1
			return cand, true
		}
	}
	return nil, false
}

func (d DynamicLoading) awaitAnnounce(ctx context.Context, c clock.Clock, idx *discovery.Index, shardID int, wait, interval time.Duration) error {
	deadline := c.Now().Add(wait)
	ticker := c.Ticker(interval)
	defer ticker.Stop()
	for {
		status := idx.GetStatus()
		if !containsInt(status.Missing, shardID) {
			return nil
		}
		if !c.Now().Before(deadline) {
			return fmt.Errorf("strategy: dynamic_loading: shard %d did not announce within %s", shardID, wait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
