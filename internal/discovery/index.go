package discovery

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/dreamware/swarmweave/internal/cluster"
	"github.com/dreamware/swarmweave/internal/dht"
)

// Priority selects which composite-score weighting BestFor/Pipeline use.
type Priority int

const (
	Balanced Priority = iota
	Speed
	Quality
	Memory
)

// maxReplicasPerShard bounds the per-shard replica cache so a
// long-running coordinator does not accumulate unbounded stale-peer
// history.
const maxReplicasPerShard = 256

// entry is one fresh-or-stale replica record tracked for a shard.
type entry struct {
	announcement cluster.ShardAnnouncement
	routingDepth int
}

// Index is the Discovery Index: shard-id -> replica set, rebuilt from
// inbound DHT records.
type Index struct {
	mu     sync.RWMutex
	cfg    cluster.Config
	ttl    time.Duration
	clock  clockFunc
	shards map[int]*lru.Cache[peer.ID, entry]
}

type clockFunc func() time.Time

// New creates an empty Index for cfg, using ttl as the freshness window
// and now as the clock source (overridable in tests).
func New(cfg cluster.Config, ttl time.Duration, now func() time.Time) *Index {
	if now == nil {
		now = time.Now
	}
	return &Index{
		cfg:    cfg,
		ttl:    ttl,
		clock:  now,
		shards: make(map[int]*lru.Cache[peer.ID, entry]),
	}
}

func (idx *Index) shardCache(shardID int) *lru.Cache[peer.ID, entry] {
	c, ok := idx.shards[shardID]
	if !ok {
		c, _ = lru.New[peer.ID, entry](maxReplicasPerShard)
		idx.shards[shardID] = c
	}
	return c
}

// Ingest parses and validates an inbound DHT record's value as a
// ShardAnnouncement and, if accepted, upserts it by (shard-id, peer-id).
// Idempotent per (shard-id, peer-id): a later call with the same key only
// updates if the record's own timestamp is newer.
func (idx *Index) Ingest(rec dht.Record, routingDepth int) error {
	var ann cluster.ShardAnnouncement
	if err := json.Unmarshal(rec.Value, &ann); err != nil {
		return fmt.Errorf("discovery: decode record: %w", err)
	}
	if !ann.Fresh(idx.clock(), idx.ttl) {
		return errStaleRecord(ann.ShardID, ann.PeerID.String())
	}
	if err := ann.Validate(idx.cfg); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	c := idx.shardCache(ann.ShardID)
	if existing, ok := c.Get(ann.PeerID); ok && existing.announcement.AnnouncedAt.After(ann.AnnouncedAt) {
		return nil // a newer record for this (shard,peer) already won
	}
	c.Add(ann.PeerID, entry{announcement: ann, routingDepth: routingDepth})
	return nil
}

// freshReplicas returns every still-fresh replica entry for shardID.
func (idx *Index) freshReplicas(shardID int) []entry {
	c, ok := idx.shards[shardID]
	if !ok {
		return nil
	}
	now := idx.clock()
	out := make([]entry, 0, c.Len())
	for _, p := range c.Keys() {
		e, ok := c.Peek(p)
		if !ok {
			continue
		}
		if e.announcement.Fresh(now, idx.ttl) {
			out = append(out, e)
		}
	}
	return out
}

// BestFor returns the replica with the maximum priority-weighted score for
// shardID, or false if no fresh replica exists.
func (idx *Index) BestFor(shardID int, priority Priority) (cluster.ShardAnnouncement, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	candidates := idx.freshReplicas(shardID)
	if len(candidates) == 0 {
		return cluster.ShardAnnouncement{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		si := score(candidates[i].announcement, priority)
		sj := score(candidates[j].announcement, priority)
		if si != sj {
			return si > sj
		}
		if candidates[i].routingDepth != candidates[j].routingDepth {
			return candidates[i].routingDepth < candidates[j].routingDepth
		}
		return candidates[i].announcement.AnnouncedAt.After(candidates[j].announcement.AnnouncedAt)
	})
	return candidates[0].announcement, true
}

// ScoreWeights configures the convex combination used for the composite
// capability score.
type ScoreWeights struct {
	CPU, Memory, LoadRoom, Latency, Reputation, GPU float64
	ShardLoadedBonus                                float64
}

// DefaultScoreWeights gives roughly equal weight across
// cpu/memory/load-room/latency/reputation/gpu with a small shard_loaded
// bonus.
var DefaultScoreWeights = ScoreWeights{
	CPU: 0.2, Memory: 0.2, LoadRoom: 0.2, Latency: 0.15, Reputation: 0.15, GPU: 0.1,
	ShardLoadedBonus: 0.05,
}

func compositeScore(c cluster.Capabilities, w ScoreWeights) float64 {
	cpuNorm := 1 - c.CPUUsagePercent/100
	memRatio := 0.0
	if c.TotalMemoryMB > 0 {
		memRatio = float64(c.AvailMemoryMB) / float64(c.TotalMemoryMB)
	}
	latencyInv := 1.0
	if c.ObservedLatencyMS > 0 {
		latencyInv = 1 / (1 + c.ObservedLatencyMS/1000)
	}
	gpu := 0.0
	if c.GPUAvailable {
		gpu = 1 - c.GPUUsagePercent/100
	}

	s := w.CPU*clamp01(cpuNorm) +
		w.Memory*clamp01(memRatio) +
		w.LoadRoom*clamp01(c.LoadRoom()) +
		w.Latency*clamp01(latencyInv) +
		w.Reputation*clamp01(c.Reputation) +
		w.GPU*clamp01(gpu)
	if c.ShardLoaded {
		s += w.ShardLoadedBonus
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// score computes the priority-weighted score for an announcement: Balanced
// blends capability/speed/quality; Speed/Quality/Memory each maximize one
// quantization axis.
func score(a cluster.ShardAnnouncement, priority Priority) float64 {
	cap := compositeScore(a.Capabilities, DefaultScoreWeights)
	q := a.Quantization
	switch priority {
	case Speed:
		return q.SpeedFactor
	case Quality:
		return q.QualityFactor
	case Memory:
		sizePenalty := q.SizeRatio
		if sizePenalty <= 0 {
			sizePenalty = 1
		}
		memAvail := 0.0
		if a.Capabilities.TotalMemoryMB > 0 {
			memAvail = float64(a.Capabilities.AvailMemoryMB) / float64(a.Capabilities.TotalMemoryMB)
		}
		return memAvail / sizePenalty
	default: // Balanced
		return 0.4*cap + 0.3*q.SpeedFactor + 0.3*q.QualityFactor
	}
}

// Pipeline returns, for each shard-id in 0..N, BestFor(shard-id, priority)
// if any — the sequence defining the inference stage order.
func (idx *Index) Pipeline(priority Priority) []cluster.ShardAnnouncement {
	out := make([]cluster.ShardAnnouncement, 0, idx.cfg.ShardCount)
	for i := 0; i < idx.cfg.ShardCount; i++ {
		if a, ok := idx.BestFor(i, priority); ok {
			out = append(out, a)
		}
	}
	return out
}

// Replicas returns every currently-fresh announcement across all shards,
// letting a caller build a per-peer (rather than per-shard) aggregate view
// — e.g. the Strategy Engine's DynamicLoading candidate selection, which
// needs each node's available memory and current loaded-shard count.
func (idx *Index) Replicas() []cluster.ShardAnnouncement {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []cluster.ShardAnnouncement
	for shardID := range idx.shards {
		for _, e := range idx.freshReplicas(shardID) {
			out = append(out, e.announcement)
		}
	}
	return out
}

// Status summarizes the index's current completeness.
type Status struct {
	Discovered     int
	Expected       int
	TotalReplicas  int
	IsComplete     bool
	HasEntry       bool
	HasExit        bool
	Missing        []int
}

// GetStatus computes the Status snapshot. is_complete is false the instant
// any shard has only stale replicas, even if a stale record still sits in
// the index.
func (idx *Index) GetStatus() Status {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	st := Status{Expected: idx.cfg.ShardCount}
	discovered := 0
	for i := 0; i < idx.cfg.ShardCount; i++ {
		replicas := idx.freshReplicas(i)
		st.TotalReplicas += len(replicas)
		if len(replicas) == 0 {
			st.Missing = append(st.Missing, i)
			continue
		}
		discovered++
		if i == 0 {
			for _, e := range replicas {
				if e.announcement.HasEmbeddings {
					st.HasEntry = true
					break
				}
			}
		}
		if i == idx.cfg.ShardCount-1 {
			for _, e := range replicas {
				if e.announcement.HasOutput {
					st.HasExit = true
					break
				}
			}
		}
	}
	st.Discovered = discovered
	st.IsComplete = discovered == idx.cfg.ShardCount && st.HasEntry && st.HasExit
	return st
}

// Cleanup drops stale records and removes shards left with no replicas.
func (idx *Index) Cleanup() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	now := idx.clock()
	for shardID, c := range idx.shards {
		for _, p := range c.Keys() {
			e, ok := c.Peek(p)
			if ok && !e.announcement.Fresh(now, idx.ttl) {
				c.Remove(p)
			}
		}
		if c.Len() == 0 {
			delete(idx.shards, shardID)
		}
	}
}

type discoveryError struct {
	kind    string
	shardID int
	peerID  string
}

func (e *discoveryError) Error() string {
	switch e.kind {
	case "stale":
		return fmt.Sprintf("discovery: StaleRecord{shard=%d, peer=%s}", e.shardID, e.peerID)
	default:
		return fmt.Sprintf("discovery: %s{shard=%d}", e.kind, e.shardID)
	}
}

func errStaleRecord(shardID int, peerID string) error {
	return &discoveryError{kind: "stale", shardID: shardID, peerID: peerID}
}
