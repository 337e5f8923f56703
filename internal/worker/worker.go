package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"

	"github.com/dreamware/swarmweave/internal/cluster"
	"github.com/dreamware/swarmweave/internal/dht"
	"github.com/dreamware/swarmweave/internal/protocol"
	"github.com/dreamware/swarmweave/internal/storage"
	"github.com/dreamware/swarmweave/internal/transfer"
	"github.com/dreamware/swarmweave/pkg/inference"
)

// Phase is one state of the shard worker state machine.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseJoining
	PhaseAnnouncedUnloaded
	PhaseLoading
	PhaseLoaded
	PhaseDraining
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseJoining:
		return "joining"
	case PhaseAnnouncedUnloaded:
		return "announced_unloaded"
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseDraining:
		return "draining"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ShardNotLoaded is returned by EXECUTE_TASK when the worker's shard has not
// reached the Loaded phase.
type ShardNotLoaded struct {
	ShardID int
	Phase   Phase
}

func (e *ShardNotLoaded) Error() string {
	return fmt.Sprintf("worker: shard %d not loaded (phase=%s)", e.ShardID, e.Phase)
}

// Config bundles the fixed parameters a Worker is constructed with.
type Config struct {
	Cluster      cluster.Config
	ShardID      int
	PeerID       peer.ID
	Multiaddr    string
	Quantization cluster.Quantization
	Static       StaticCapacity
	DHT          dht.Store
	Blobs        storage.BlobStore
	Executor     inference.Executor
	Sender       protocol.Sender
	Clock        func() time.Time
}

// Worker is one shard worker: it owns exactly one shard replica, tracked by
// Phase, and dispatches the ten coordinator commands plus the two
// chunk-transfer commands its Seeder answers.
type Worker struct {
	cfg    Config
	layers cluster.LayerRange
	seeder *transfer.Seeder

	mu              sync.RWMutex
	phase           Phase
	infoHash        string
	filename        string
	operationMode   string
	needsReannounce bool

	activeRequests atomic.Int64

	log *logrus.Entry
}

// New constructs a Worker in PhaseInit. Call Join to begin the state
// machine.
func New(cfg Config) *Worker {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	cfg.Clock = clock

	return &Worker{
		cfg:           cfg,
		layers:        cfg.Cluster.LayerRangeFor(cfg.ShardID),
		seeder:        transfer.NewSeeder(cfg.Blobs),
		phase:         PhaseInit,
		operationMode: "normal",
		log: logrus.WithFields(logrus.Fields{
			"component": "worker",
			"shard_id":  cfg.ShardID,
			"peer":      cfg.PeerID.String(),
		}),
	}
}

// Phase returns the worker's current state.
func (w *Worker) Phase() Phase {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.phase
}

func (w *Worker) setPhase(p Phase) {
	w.mu.Lock()
	w.phase = p
	w.mu.Unlock()
}

// Join drives Init -> Joining -> AnnouncedUnloaded: it bootstraps into the
// DHT and publishes an unloaded announcement so the coordinator can discover
// this worker and send LOAD_SHARD, even though no shard file is on disk yet.
func (w *Worker) Join(ctx context.Context, bootstrapAddrs []string) error {
	w.setPhase(PhaseJoining)
	if err := w.cfg.DHT.Bootstrap(ctx, bootstrapAddrs); err != nil {
		return fmt.Errorf("worker: bootstrap: %w", err)
	}
	if err := w.announce(ctx, false); err != nil {
		return fmt.Errorf("worker: initial announce: %w", err)
	}
	w.setPhase(PhaseAnnouncedUnloaded)
	w.log.Info("announced unloaded")
	return nil
}

// announce builds and publishes the current ShardAnnouncement, reflecting
// loaded.
func (w *Worker) announce(ctx context.Context, loaded bool) error {
	caps := CollectCapabilities(w.cfg.Static, int(w.activeRequests.Load()), loaded)
	ann := cluster.ShardAnnouncement{
		PeerID:             w.cfg.PeerID,
		ShardID:            w.cfg.ShardID,
		LayerRange:         w.layers,
		LayerStart:         w.layers.Start,
		LayerEnd:           w.layers.End,
		HasEmbeddings:      w.cfg.ShardID == 0,
		HasOutput:          w.cfg.ShardID == w.cfg.Cluster.ShardCount-1,
		Multiaddr:          w.cfg.Multiaddr,
		ModelName:          w.cfg.Cluster.ModelName,
		TotalShards:        w.cfg.Cluster.ShardCount,
		ModelParamsBillion: w.cfg.Cluster.ParamsBillion,
		Quantization:       w.cfg.Quantization,
		Capabilities:       caps,
		AnnouncedAt:        w.cfg.Clock(),
		Version:            cluster.RecordSchemaVersion,
	}
	value, err := json.Marshal(ann)
	if err != nil {
		return fmt.Errorf("worker: marshal announcement: %w", err)
	}
	return w.cfg.DHT.PutRecord(ctx, w.cfg.Cluster.RecordKey(w.cfg.ShardID), value)
}

// Refresh re-publishes the current announcement with an updated timestamp
// and clears needsReannounce. It publishes in AnnouncedUnloaded and Loaded
// and does nothing in any other phase. cmd/worker calls it from a ticker
// that starts once Join returns; LOAD_SHARD re-announces on its own when it
// reaches Loaded.
func (w *Worker) Refresh(ctx context.Context) error {
	w.mu.RLock()
	phase := w.phase
	w.mu.RUnlock()
	if phase != PhaseLoaded && phase != PhaseAnnouncedUnloaded {
		return nil
	}
	if err := w.announce(ctx, phase == PhaseLoaded); err != nil {
		return err
	}
	w.mu.Lock()
	w.needsReannounce = false
	w.mu.Unlock()
	return nil
}

// Dispatch routes one validated CommandEnvelope to its handler, always
// returning a well-formed ResponseEnvelope.
func (w *Worker) Dispatch(ctx context.Context, cmd protocol.CommandEnvelope) protocol.ResponseEnvelope {
	start := time.Now()
	if err := protocol.Validate(cmd, w.cfg.Clock()); err != nil {
		return protocol.Fail(cmd, w.cfg.PeerID.String(), err)
	}

	var resp protocol.ResponseEnvelope
	switch cmd.Command {
	case protocol.CmdGetCapabilities:
		resp = w.handleGetCapabilities(cmd)
	case protocol.CmdLoadShard:
		resp = w.handleLoadShard(ctx, cmd)
	case protocol.CmdExecuteTask:
		resp = w.handleExecuteTask(ctx, cmd)
	case protocol.CmdListFiles:
		resp = w.handleListFiles(cmd)
	case protocol.CmdGetStatus:
		resp = w.handleGetStatus(cmd)
	case protocol.CmdSetOperationMode:
		resp = w.handleSetOperationMode(cmd)
	case protocol.CmdPause:
		resp = w.handlePause(cmd)
	case protocol.CmdResume:
		resp = w.handleResume(cmd)
	case protocol.CmdRestart:
		resp = w.handleRestart(cmd)
	case protocol.CmdShutdown:
		resp = w.handleShutdown(cmd)
	case protocol.CmdRequestMetadata:
		resp = w.handleRequestMetadata(cmd)
	case protocol.CmdRequestPiece:
		resp = w.handleRequestPiece(cmd)
	default:
		resp = protocol.Fail(cmd, w.cfg.PeerID.String(), fmt.Errorf("worker: unhandled command %q", cmd.Command))
	}

	w.log.WithFields(logrus.Fields{
		"command":    cmd.Command,
		"request_id": cmd.RequestID,
		"peer":       cmd.From,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Debug("dispatched command")
	return resp
}

func (w *Worker) handleGetCapabilities(cmd protocol.CommandEnvelope) protocol.ResponseEnvelope {
	caps := CollectCapabilities(w.cfg.Static, int(w.activeRequests.Load()), w.Phase() == PhaseLoaded)
	result := map[string]interface{}{
		"shard_id":     w.cfg.ShardID,
		"capabilities": structToMap(caps),
	}
	return protocol.Success(cmd, w.cfg.PeerID.String(), result)
}

func (w *Worker) handleListFiles(cmd protocol.CommandEnvelope) protocol.ResponseEnvelope {
	files := w.seeder.ListFiles()
	return protocol.Success(cmd, w.cfg.PeerID.String(), map[string]interface{}{"files": files})
}

func (w *Worker) handleGetStatus(cmd protocol.CommandEnvelope) protocol.ResponseEnvelope {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return protocol.Success(cmd, w.cfg.PeerID.String(), map[string]interface{}{
		"shard_id":        w.cfg.ShardID,
		"phase":           w.phase.String(),
		"operation_mode":  w.operationMode,
		"active_requests": w.activeRequests.Load(),
	})
}

func (w *Worker) handleSetOperationMode(cmd protocol.CommandEnvelope) protocol.ResponseEnvelope {
	mode, _ := cmd.Params["mode"].(string)
	w.mu.Lock()
	w.operationMode = mode
	w.mu.Unlock()
	if mode == "maintenance" || mode == "shutdown" {
		w.setPhase(PhaseDraining)
	}
	return protocol.Success(cmd, w.cfg.PeerID.String(), map[string]interface{}{"mode": mode})
}

func (w *Worker) handlePause(cmd protocol.CommandEnvelope) protocol.ResponseEnvelope {
	w.mu.Lock()
	w.operationMode = "standby"
	w.mu.Unlock()
	return protocol.Success(cmd, w.cfg.PeerID.String(), nil)
}

func (w *Worker) handleResume(cmd protocol.CommandEnvelope) protocol.ResponseEnvelope {
	w.mu.Lock()
	w.operationMode = "normal"
	w.mu.Unlock()
	return protocol.Success(cmd, w.cfg.PeerID.String(), nil)
}

func (w *Worker) handleRestart(cmd protocol.CommandEnvelope) protocol.ResponseEnvelope {
	w.setPhase(PhaseAnnouncedUnloaded)
	w.mu.Lock()
	w.operationMode = "normal"
	w.mu.Unlock()
	return protocol.Success(cmd, w.cfg.PeerID.String(), nil)
}

func (w *Worker) handleShutdown(cmd protocol.CommandEnvelope) protocol.ResponseEnvelope {
	w.setPhase(PhaseDraining)
	if w.activeRequests.Load() == 0 {
		w.setPhase(PhaseTerminated)
	}
	return protocol.Success(cmd, w.cfg.PeerID.String(), nil)
}

func (w *Worker) handleRequestMetadata(cmd protocol.CommandEnvelope) protocol.ResponseEnvelope {
	infoHash, _ := cmd.Params["info_hash"].(string)
	metadata, err := w.seeder.Metadata(infoHash)
	if err != nil {
		return protocol.Fail(cmd, w.cfg.PeerID.String(), err)
	}
	return protocol.Success(cmd, w.cfg.PeerID.String(), structToMap(metadata))
}

func (w *Worker) handleRequestPiece(cmd protocol.CommandEnvelope) protocol.ResponseEnvelope {
	infoHash, _ := cmd.Params["info_hash"].(string)
	index, _ := cmd.Params["index"].(int)
	if index == 0 {
		if f, ok := cmd.Params["index"].(float64); ok {
			index = int(f)
		}
	}
	piece, err := w.seeder.Piece(infoHash, index)
	if err != nil {
		return protocol.Fail(cmd, w.cfg.PeerID.String(), err)
	}
	return protocol.Success(cmd, w.cfg.PeerID.String(), structToMap(piece))
}

// structToMap round-trips v through JSON to produce a map[string]interface{}
// result payload, matching the envelope's untyped Result shape.
func structToMap(v interface{}) map[string]interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
