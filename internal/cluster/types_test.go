package cluster

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		name string
		n, l int
		want []LayerRange
	}{
		{"even split", 4, 32, []LayerRange{{0, 8}, {8, 16}, {16, 24}, {24, 32}}},
		{"last shard absorbs remainder", 3, 10, []LayerRange{{0, 3}, {3, 6}, {6, 10}}},
		{"single shard owns everything", 1, 12, []LayerRange{{0, 12}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Partition(tt.n, tt.l)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d ranges, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("range %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestShardAnnouncementFresh(t *testing.T) {
	now := time.Now()
	a := ShardAnnouncement{AnnouncedAt: now.Add(-250 * time.Second)}
	if !a.Fresh(now, DefaultAnnouncementTTL) {
		t.Error("expected announcement within TTL to be fresh")
	}
	a.AnnouncedAt = now.Add(-301 * time.Second)
	if a.Fresh(now, DefaultAnnouncementTTL) {
		t.Error("expected announcement past TTL to be stale")
	}
}

func TestShardAnnouncementValidate(t *testing.T) {
	cfg := Config{Name: "lc", ShardCount: 4, TotalLayers: 32}

	valid := ShardAnnouncement{
		ShardID: 0, LayerStart: 0, LayerEnd: 8,
		HasEmbeddings: true, HasOutput: false,
		Version: RecordSchemaVersion,
	}
	if err := valid.Validate(cfg); err != nil {
		t.Errorf("expected valid announcement to pass, got %v", err)
	}

	badVersion := valid
	badVersion.Version = 99
	if err := badVersion.Validate(cfg); err == nil {
		t.Error("expected unknown schema version to be rejected")
	}

	badRange := valid
	badRange.LayerEnd = 9
	if err := badRange.Validate(cfg); err == nil {
		t.Error("expected mismatched layer range to be rejected")
	}

	badFlags := valid
	badFlags.HasEmbeddings = false
	if err := badFlags.Validate(cfg); err == nil {
		t.Error("expected has_embeddings mismatch to be rejected")
	}

	outOfRange := valid
	outOfRange.ShardID = 9
	if err := outOfRange.Validate(cfg); err == nil {
		t.Error("expected out-of-range shard id to be rejected")
	}
}

func TestShardAnnouncementJSONRoundTrip(t *testing.T) {
	orig := ShardAnnouncement{
		PeerID:        peer.ID("peer-1"),
		ShardID:       2,
		LayerStart:    16,
		LayerEnd:      24,
		Multiaddr:     "/ip4/127.0.0.1/tcp/4001",
		ModelName:     "swarm-7b",
		TotalShards:   4,
		Quantization:  Quantization{Tag: "q4_0", SpeedFactor: 1.8, QualityFactor: 0.9, SizeRatio: 0.25},
		Capabilities:  Capabilities{CPUCores: 8, MaxConcurrent: 4},
		AnnouncedAt:   time.Now().Truncate(time.Second),
		Version:       RecordSchemaVersion,
	}

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded ShardAnnouncement
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.ShardID != orig.ShardID || decoded.Multiaddr != orig.Multiaddr {
		t.Errorf("round-trip mismatch: got %+v", decoded)
	}
}

func TestConfigRecordKey(t *testing.T) {
	cfg := Config{Name: "lc"}
	if got, want := cfg.RecordKey(2), "/cluster/lc/shard/2"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
