package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/swarmweave/internal/cluster"
	"github.com/dreamware/swarmweave/internal/coordinator"
	"github.com/dreamware/swarmweave/internal/discovery"
)

func TestWaitAndRetrySucceedsOncePipelineCompletes(t *testing.T) {
	cfg := cluster.Config{Name: "c", ModelName: "m", ShardCount: 2, TotalLayers: 10}
	now := time.Now()
	idx := newIndexMissing(t, cfg, now, 1)

	mock := clock.NewMock()
	w := WaitAndRetry{Timeout: time.Minute, Interval: 100 * time.Millisecond, Clock: mock}

	type result struct {
		res coordinator.Resolution
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := w.Resolve(context.Background(), idx, discovery.Balanced, []int{1})
		done <- result{res, err}
	}()

	time.Sleep(20 * time.Millisecond) // let the goroutine reach its first poll and block on the ticker
	announceShard(t, idx, cfg, 1, "peer-1", cluster.Capabilities{AvailMemoryMB: 4000}, now)
	mock.Add(150 * time.Millisecond)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.Equal(t, "pipeline", r.res.StrategyUsed)
		require.Len(t, r.res.Pipeline, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("expected WaitAndRetry to observe completeness and return")
	}
}

func TestWaitAndRetryTimesOutWhenStillIncomplete(t *testing.T) {
	cfg := cluster.Config{Name: "c", ModelName: "m", ShardCount: 2, TotalLayers: 10}
	now := time.Now()
	idx := newIndexMissing(t, cfg, now, 1)

	mock := clock.NewMock()
	w := WaitAndRetry{Timeout: 500 * time.Millisecond, Interval: 100 * time.Millisecond, Clock: mock}

	type result struct {
		err error
	}
	done := make(chan result, 1)
	go func() {
		_, err := w.Resolve(context.Background(), idx, discovery.Balanced, []int{1})
		done <- result{err}
	}()

	time.Sleep(20 * time.Millisecond)
	mock.Add(600 * time.Millisecond)

	select {
	case r := <-done:
		require.Error(t, r.err)
		var timeout *Timeout
		require.ErrorAs(t, r.err, &timeout)
		require.Equal(t, []int{1}, timeout.Missing)
	case <-time.After(2 * time.Second):
		t.Fatal("expected WaitAndRetry to time out")
	}
}
