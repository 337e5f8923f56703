// This file implements the ingestion side of discovery: a Poller pulls
// every shard's announcements out of a dht.Store on an interval and feeds
// them into an Index via Ingest, the way a real Kademlia provider-record
// walk would surface remote puts to a local observer. Mirrors the
// StalenessMonitor's ticker-loop shape in internal/coordinator, just driving
// Ingest instead of Cleanup.
package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/swarmweave/internal/cluster"
	"github.com/dreamware/swarmweave/internal/dht"
)

// DefaultPollInterval is how often a Poller re-scans the DHT store.
const DefaultPollInterval = 2 * time.Second

// Poller periodically scans a dht.Store for every shard's announcements
// and ingests them into an Index.
type Poller struct {
	idx      *Index
	store    dht.Store
	cluster  cluster.Config
	interval time.Duration
	log      *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a Poller feeding idx from store, defaulting interval to
// DefaultPollInterval.
func NewPoller(idx *Index, store dht.Store, cfg cluster.Config, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		idx: idx, store: store, cluster: cfg, interval: interval,
		log: logrus.WithField("component", "discovery_poller"),
		ctx: ctx, cancel: cancel,
	}
}

// Start runs the scan loop until ctx (or the poller's own Stop) is
// cancelled. Call it in its own goroutine.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	defer p.wg.Done()

	if ctx == nil {
		ctx = p.ctx
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.scan(ctx)
	for {
		select {
		case <-ticker.C:
			p.scan(ctx)
		case <-ctx.Done():
			return
		case <-p.ctx.Done():
			return
		}
	}
}

// Stop cancels the scan loop and waits for it to exit.
func (p *Poller) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *Poller) scan(ctx context.Context) {
	for shardID := 0; shardID < p.cluster.ShardCount; shardID++ {
		prefix := fmt.Sprintf("/cluster/%s/shard/%d", p.cluster.Name, shardID)
		records, err := p.store.GetRecords(ctx, prefix)
		if err != nil {
			p.log.WithError(err).WithField("shard_id", shardID).Warn("dht scan failed")
			continue
		}
		for _, rec := range records {
			// The publishing peer isn't known until Ingest decodes rec.Value,
			// so routing depth can't be looked up here; 0 just means "not
			// tracked for this entry", matching records ingested before a
			// peer's first real DHT round-trip.
			if err := p.idx.Ingest(rec, 0); err != nil {
				p.log.WithError(err).WithField("key", rec.Key).Debug("ingest skipped")
			}
		}
	}
}
