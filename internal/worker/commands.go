package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/dreamware/swarmweave/internal/protocol"
	"github.com/dreamware/swarmweave/internal/transfer"
)

// handleLoadShard promotes AnnouncedUnloaded -> Loading -> Loaded. If the
// shard file named by info_hash is already on disk, promotion is immediate.
// Otherwise it runs a chunk-transfer Session against source_addr, the peer
// address the command names as the shard's originator.
func (w *Worker) handleLoadShard(ctx context.Context, cmd protocol.CommandEnvelope) protocol.ResponseEnvelope {
	infoHash, _ := cmd.Params["info_hash"].(string)
	filename, _ := cmd.Params["filename"].(string)
	sourceAddr, _ := cmd.Params["source_addr"].(string)

	if infoHash == "" || filename == "" {
		return protocol.Fail(cmd, w.cfg.PeerID.String(), fmt.Errorf("worker: load_shard requires info_hash and filename"))
	}

	w.mu.Lock()
	w.infoHash = infoHash
	w.filename = filename
	w.mu.Unlock()

	if w.cfg.Blobs.Has(infoHash) {
		w.setPhase(PhaseLoaded)
		w.mu.Lock()
		w.needsReannounce = true
		w.mu.Unlock()
		if err := w.announce(ctx, true); err != nil {
			w.log.WithError(err).Warn("re-announce after immediate shard promotion failed")
		}
		return protocol.Success(cmd, w.cfg.PeerID.String(), map[string]interface{}{
			"shard_id": w.cfg.ShardID,
			"status":   "loaded",
		})
	}

	if sourceAddr == "" {
		return protocol.Fail(cmd, w.cfg.PeerID.String(), &transfer.NoSeeder{ShardID: w.cfg.ShardID})
	}

	w.setPhase(PhaseLoading)
	fetcher := NewRemoteFetcher(w.cfg.Sender, sourceAddr, w.cfg.PeerID.String())
	session := transfer.NewSession(infoHash, filename, fetcher, w.cfg.Blobs)

	if err := session.Run(ctx); err != nil {
		w.setPhase(PhaseAnnouncedUnloaded)
		return protocol.Fail(cmd, w.cfg.PeerID.String(), err)
	}

	w.setPhase(PhaseLoaded)
	w.mu.Lock()
	w.needsReannounce = true
	w.mu.Unlock()
	if err := w.announce(ctx, true); err != nil {
		w.log.WithError(err).Warn("re-announce after shard load failed")
	}
	return protocol.Success(cmd, w.cfg.PeerID.String(), map[string]interface{}{
		"shard_id": w.cfg.ShardID,
		"status":   "loaded",
	})
}

// handleExecuteTask runs one inference stage over this worker's layer range.
// It rejects the request with ShardNotLoaded unless the worker is currently
// in PhaseLoaded, and always preserves the inbound request-id on its
// response.
func (w *Worker) handleExecuteTask(ctx context.Context, cmd protocol.CommandEnvelope) protocol.ResponseEnvelope {
	if w.Phase() != PhaseLoaded {
		return protocol.Fail(cmd, w.cfg.PeerID.String(), &ShardNotLoaded{ShardID: w.cfg.ShardID, Phase: w.Phase()})
	}

	input, _ := cmd.Params["input_data"].(string)

	w.activeRequests.Add(1)
	defer w.activeRequests.Add(-1)

	start := time.Now()
	output, tokens, err := w.cfg.Executor.Execute(ctx, []byte(input), w.layers.Start, w.layers.End)
	if err != nil {
		return protocol.Fail(cmd, w.cfg.PeerID.String(), fmt.Errorf("worker: execute: %w", err))
	}

	return protocol.Success(cmd, w.cfg.PeerID.String(), map[string]interface{}{
		"output":             string(output),
		"shard_id":           w.cfg.ShardID,
		"layer_start":        w.layers.Start,
		"layer_end":          w.layers.End,
		"tokens_generated":   tokens,
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
}
