package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/swarmweave/internal/cluster"
	"github.com/dreamware/swarmweave/internal/dht"
	"github.com/dreamware/swarmweave/internal/discovery"
	"github.com/dreamware/swarmweave/internal/protocol"
)

// sendFunc adapts a plain function to protocol.Sender.
type sendFunc func(ctx context.Context, addr string, cmd protocol.CommandEnvelope) (protocol.ResponseEnvelope, error)

func (f sendFunc) Send(ctx context.Context, addr string, cmd protocol.CommandEnvelope) (protocol.ResponseEnvelope, error) {
	return f(ctx, addr, cmd)
}

// announceShard ingests a fresh ShardAnnouncement for (shardID, peerID) into
// idx, following cfg's canonical layer partition.
func announceShard(t *testing.T, idx *discovery.Index, cfg cluster.Config, shardID int, peerID string, caps cluster.Capabilities, now time.Time) {
	t.Helper()
	lr := cfg.LayerRangeFor(shardID)
	ann := cluster.ShardAnnouncement{
		PeerID:        peer.ID(peerID),
		ShardID:       shardID,
		LayerStart:    lr.Start,
		LayerEnd:      lr.End,
		HasEmbeddings: shardID == 0,
		HasOutput:     shardID == cfg.ShardCount-1,
		Multiaddr:     fmt.Sprintf("http://%s", peerID),
		ModelName:     cfg.ModelName,
		TotalShards:   cfg.ShardCount,
		Capabilities:  caps,
		Version:       cluster.RecordSchemaVersion,
		AnnouncedAt:   now,
	}
	val, err := json.Marshal(ann)
	require.NoError(t, err)
	require.NoError(t, idx.Ingest(dht.Record{Key: cfg.RecordKey(shardID), Value: val}, 0))
}

// newIndexMissing builds an Index for cfg with every shard in present
// announced except those listed in missing.
func newIndexMissing(t *testing.T, cfg cluster.Config, now time.Time, missing ...int) *discovery.Index {
	t.Helper()
	idx := discovery.New(cfg, time.Hour, func() time.Time { return now })
	skip := map[int]bool{}
	for _, m := range missing {
		skip[m] = true
	}
	for i := 0; i < cfg.ShardCount; i++ {
		if skip[i] {
			continue
		}
		announceShard(t, idx, cfg, i, fmt.Sprintf("peer-%d", i), cluster.Capabilities{AvailMemoryMB: 8000}, now)
	}
	return idx
}
