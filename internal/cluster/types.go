package cluster

import (
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// DefaultAnnouncementTTL is the maximum age at which a ShardAnnouncement is
// still considered authoritative.
const DefaultAnnouncementTTL = 300 * time.Second

// DefaultRefreshInterval is how often a Loaded worker re-publishes its
// announcement.
const DefaultRefreshInterval = 60 * time.Second

// RecordSchemaVersion is the current DHT record schema version. Consumers
// reject any record whose Version field does not match.
const RecordSchemaVersion = 1

// Config is the static, cluster-wide configuration every participant loads
// identically: name, expected shard count, total layer count and the
// canonical model identifier being served.
type Config struct {
	Name          string `mapstructure:"name" json:"name"`
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	ShardCount    int    `mapstructure:"shard_count" json:"shard_count"`
	TotalLayers   int    `mapstructure:"total_layers" json:"total_layers"`
	ParamsBillion float64 `mapstructure:"params_billion" json:"params_billion"`
}

// RecordKey returns the DHT key under which shard-id's announcement is
// published: "/cluster/<name>/shard/<id>".
func (c Config) RecordKey(shardID int) string {
	return fmt.Sprintf("/cluster/%s/shard/%d", c.Name, shardID)
}

// LayerRange is a half-open range of transformer layers, [Start, End).
type LayerRange struct {
	Start int `json:"layer_start"`
	End   int `json:"layer_end"`
}

// Valid reports whether l is a non-empty, well-formed range.
func (l LayerRange) Valid() bool { return l.End > l.Start && l.Start >= 0 }

// Partition computes the canonical contiguous layer partition for a cluster
// of n shards over l total layers: shard i owns
// [i*floor(l/n), (i+1)*floor(l/n)), except the last shard which extends to
// l. Panics if n <= 0, matching the "expected shard count" invariant being
// fixed cluster configuration, never a runtime-derived value.
func Partition(n, l int) []LayerRange {
	if n <= 0 {
		panic("cluster: shard count must be positive")
	}
	per := l / n
	ranges := make([]LayerRange, n)
	for i := 0; i < n; i++ {
		start := i * per
		end := start + per
		if i == n-1 {
			end = l
		}
		ranges[i] = LayerRange{Start: start, End: end}
	}
	return ranges
}

// LayerRangeFor returns the canonical range owned by shardID under cfg.
func (c Config) LayerRangeFor(shardID int) LayerRange {
	return Partition(c.ShardCount, c.TotalLayers)[shardID]
}

// Capabilities is the worker-reported resource and load snapshot carried on
// every ShardAnnouncement and used by the Discovery Index to rank replicas.
type Capabilities struct {
	CPUCores         int     `json:"cpu_cores"`
	CPUUsagePercent  float64 `json:"cpu_usage_percent"`
	TotalMemoryMB    int64   `json:"total_memory_mb"`
	AvailMemoryMB    int64   `json:"avail_memory_mb"`
	GPUMemoryMB      int64   `json:"gpu_memory_mb"`
	GPUUsagePercent  float64 `json:"gpu_usage_percent"`
	GPUAvailable     bool    `json:"gpu_available"`
	ObservedLatencyMS float64 `json:"observed_latency_ms"`
	Reputation       float64 `json:"reputation"` // [0,1]
	ShardLoaded      bool    `json:"shard_loaded"`
	ActiveRequests   int     `json:"active_requests"`
	MaxConcurrent    int     `json:"max_concurrent"`
}

// LoadRoom returns the fraction of concurrency capacity still free,
// clamped to [0,1]. Used by the composite score's backpressure term.
func (c Capabilities) LoadRoom() float64 {
	if c.MaxConcurrent <= 0 {
		return 0
	}
	room := 1 - float64(c.ActiveRequests)/float64(c.MaxConcurrent)
	if room < 0 {
		return 0
	}
	if room > 1 {
		return 1
	}
	return room
}

// Quantization describes the numeric format a shard's weights are served in,
// used by the Speed/Quality/Memory selection priorities.
type Quantization struct {
	Tag           string  `json:"tag"`            // e.g. "q4_0", "q8_0", "f16"
	SpeedFactor   float64 `json:"speed_factor"`   // higher = faster inference
	QualityFactor float64 `json:"quality_factor"` // higher = closer to fp32
	SizeRatio     float64 `json:"size_ratio"`     // fraction of fp32 size on disk
}

// ShardAnnouncement is the DHT record value published by a worker hosting a
// shard replica. It is JSON-serialized verbatim as the DHT
// record value.
type ShardAnnouncement struct {
	PeerID            peer.ID      `json:"peer_id"`
	ShardID           int          `json:"shard_id"`
	LayerRange        LayerRange   `json:"-"`
	LayerStart        int          `json:"layer_start"`
	LayerEnd          int          `json:"layer_end"`
	HasEmbeddings     bool         `json:"has_embeddings"`
	HasOutput         bool         `json:"has_output"`
	Multiaddr         string       `json:"multiaddr"`
	ModelName         string       `json:"model_name"`
	TotalShards       int          `json:"total_shards"`
	ModelParamsBillion float64     `json:"model_params_billions"`
	Quantization      Quantization `json:"quantization"`
	Capabilities      Capabilities `json:"capabilities"`
	AnnouncedAt       time.Time    `json:"timestamp"`
	Version           int          `json:"version"`
}

// Fresh reports whether the announcement is still authoritative at `now`
// given ttl.
func (a ShardAnnouncement) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(a.AnnouncedAt) < ttl
}

// Validate checks the invariants every accepted announcement must satisfy:
// shard-id range, embeddings/output flags matching shard position, layer
// range matching the canonical partition, and a known schema version.
func (a ShardAnnouncement) Validate(cfg Config) error {
	if a.Version != RecordSchemaVersion {
		return fmt.Errorf("cluster: unknown schema version %d", a.Version)
	}
	if a.ShardID < 0 || a.ShardID >= cfg.ShardCount {
		return fmt.Errorf("cluster: shard id %d out of range [0,%d)", a.ShardID, cfg.ShardCount)
	}
	want := cfg.LayerRangeFor(a.ShardID)
	if a.LayerStart != want.Start || a.LayerEnd != want.End {
		return fmt.Errorf("cluster: shard %d layer range [%d,%d) does not match canonical [%d,%d)",
			a.ShardID, a.LayerStart, a.LayerEnd, want.Start, want.End)
	}
	if a.HasEmbeddings != (a.ShardID == 0) {
		return fmt.Errorf("cluster: has_embeddings must equal (shard_id == 0)")
	}
	if a.HasOutput != (a.ShardID == cfg.ShardCount-1) {
		return fmt.Errorf("cluster: has_output must equal (shard_id == total_shards-1)")
	}
	return nil
}
