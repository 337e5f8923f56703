// This file implements periodic freshness monitoring over the Discovery
// Index: it calls Cleanup on an interval and notifies a callback whenever
// the index transitions from complete to incomplete, so the Strategy
// Engine (or an operator dashboard) learns about shard loss without
// polling GetStatus itself.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/swarmweave/internal/discovery"
)

// DefaultCleanupInterval is how often StalenessMonitor sweeps the
// DiscoveryIndex for stale announcements.
const DefaultCleanupInterval = 5 * time.Second

// StalenessMonitor periodically runs discovery.Index.Cleanup and reports
// completeness transitions. Thread-safe: all methods are safe for
// concurrent access.
type StalenessMonitor struct {
	index    *discovery.Index
	interval time.Duration
	onLost   func(missing []int)

	mu          sync.Mutex
	wasComplete bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logrus.Entry
}

// NewStalenessMonitor creates a monitor sweeping idx every interval.
func NewStalenessMonitor(idx *discovery.Index, interval time.Duration) *StalenessMonitor {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &StalenessMonitor{
		index: idx, interval: interval,
		wasComplete: true,
		ctx:         ctx, cancel: cancel,
		log: logrus.WithField("component", "staleness_monitor"),
	}
}

// SetOnLost sets the callback invoked with the current missing-shard set
// the moment the index transitions from complete to incomplete.
func (m *StalenessMonitor) SetOnLost(callback func(missing []int)) {
	m.mu.Lock()
	m.onLost = callback
	m.mu.Unlock()
}

// Start runs the sweep loop until ctx (or the monitor's own Stop) is
// cancelled. Call it in its own goroutine.
func (m *StalenessMonitor) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	if ctx == nil {
		ctx = m.ctx
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.sweep()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-ctx.Done():
			return
		case <-m.ctx.Done():
			return
		}
	}
}

// Stop cancels the sweep loop and waits for it to exit.
func (m *StalenessMonitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *StalenessMonitor) sweep() {
	m.index.Cleanup()
	status := m.index.GetStatus()

	m.mu.Lock()
	wasComplete := m.wasComplete
	m.wasComplete = status.IsComplete
	callback := m.onLost
	m.mu.Unlock()

	if wasComplete && !status.IsComplete && callback != nil {
		m.log.WithField("missing", status.Missing).Warn("pipeline lost completeness")
		go callback(status.Missing)
	}
}
