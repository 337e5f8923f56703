package strategy

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dreamware/swarmweave/internal/coordinator"
	"github.com/dreamware/swarmweave/internal/discovery"
)

// DefaultPollInterval is WaitAndRetry's polling interval when none is set.
const DefaultPollInterval = time.Second

// WaitAndRetry polls DiscoveryIndex.GetStatus every Interval until the
// pipeline completes or Timeout elapses.
type WaitAndRetry struct {
	Timeout  time.Duration
	Interval time.Duration
	Clock    clock.Clock
}

// Resolve implements coordinator.Strategy.
func (w WaitAndRetry) Resolve(ctx context.Context, idx *discovery.Index, priority discovery.Priority, missing []int) (coordinator.Resolution, error) {
	c := w.Clock
	if c == nil {
		c = clock.New()
	}
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	deadline := c.Now().Add(w.Timeout)
	ticker := c.Ticker(interval)
	defer ticker.Stop()

	for {
		status := idx.GetStatus()
		if status.IsComplete {
			return coordinator.Resolution{Pipeline: idx.Pipeline(priority), StrategyUsed: "pipeline"}, nil
		}
		if !c.Now().Before(deadline) {
			return coordinator.Resolution{}, &Timeout{Missing: status.Missing, Waited: w.Timeout}
		}
		select {
		case <-ctx.Done():
			return coordinator.Resolution{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
