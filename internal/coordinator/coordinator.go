package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dreamware/swarmweave/internal/cluster"
	"github.com/dreamware/swarmweave/internal/discovery"
	"github.com/dreamware/swarmweave/internal/protocol"
)

// DefaultStageDeadline is the per-stage EXECUTE_TASK RPC deadline.
const DefaultStageDeadline = 30 * time.Second

// Config bundles everything a Coordinator needs to drive pipelines.
type Config struct {
	Cluster       cluster.Config
	Index         *discovery.Index
	Sender        protocol.Sender
	Strategy      Strategy
	StageDeadline time.Duration
	SelfID        string
	Clock         clock.Clock
}

// Coordinator drives InferenceRequests to InferenceResponses over the
// shard pipeline the DiscoveryIndex (and, when necessary, the Strategy
// Engine) resolves.
type Coordinator struct {
	cfg     Config
	pending *PendingTable
	demand  *DemandTracker
	clock   clock.Clock
	log     *logrus.Entry

	mu     sync.RWMutex
	active map[string]*PipelineState
}

// New creates a Coordinator from cfg, defaulting StageDeadline and Clock.
func New(cfg Config) *Coordinator {
	if cfg.StageDeadline <= 0 {
		cfg.StageDeadline = DefaultStageDeadline
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.SelfID == "" {
		cfg.SelfID = "coordinator"
	}
	return &Coordinator{
		cfg:     cfg,
		pending: NewPendingTable(cfg.Clock),
		demand:  NewDemandTracker(),
		clock:   cfg.Clock,
		log:     logrus.WithField("component", "coordinator"),
		active:  make(map[string]*PipelineState),
	}
}

// Demand exposes the coordinator's live demand counters, e.g. for a
// joining worker or the Strategy Engine's DynamicLoading/SpawnNodes paths
// to pick the scarcest shard.
func (c *Coordinator) Demand() *DemandTracker { return c.demand }

// State returns the current PipelineState for requestID, if it is still
// in flight.
func (c *Coordinator) State(requestID string) (PipelineState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.active[requestID]
	if !ok {
		return PipelineState{}, false
	}
	return *s, true
}

// Submit admits req, updates demand counters for any currently-missing
// shard, resolves a pipeline (immediately if the index is already complete,
// otherwise via the configured Strategy), and drives it to completion.
func (c *Coordinator) Submit(ctx context.Context, req InferenceRequest) (InferenceResponse, error) {
	state := &PipelineState{RequestID: req.RequestID, Status: StatusPending}
	c.mu.Lock()
	c.active[req.RequestID] = state
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.active, req.RequestID)
		c.mu.Unlock()
	}()

	status := c.cfg.Index.GetStatus()
	if len(status.Missing) > 0 {
		c.demand.RecordPending(status.Missing)
		defer func() {
			for _, id := range status.Missing {
				c.demand.Release(id)
			}
		}()
	}

	var pipeline []cluster.ShardAnnouncement
	strategyUsed := "pipeline"

	if status.IsComplete {
		pipeline = c.cfg.Index.Pipeline(req.Priority)
	} else {
		if c.cfg.Strategy == nil {
			err := &InferenceFailed{ShardID: -1, Reason: fmt.Sprintf("no strategy configured, missing shards %v", status.Missing)}
			c.fail(state, -1, err.Error())
			return InferenceResponse{}, err
		}
		resolution, err := c.cfg.Strategy.Resolve(ctx, c.cfg.Index, req.Priority, status.Missing)
		if err != nil {
			c.fail(state, -1, err.Error())
			return InferenceResponse{}, err
		}
		pipeline = resolution.Pipeline
		strategyUsed = resolution.StrategyUsed
	}

	return c.executePipeline(ctx, req, state, pipeline, strategyUsed)
}

// executePipeline drives a frozen pipeline snapshot stage by stage, strictly
// sequential within this request.
func (c *Coordinator) executePipeline(ctx context.Context, req InferenceRequest, state *PipelineState, pipeline []cluster.ShardAnnouncement, strategyUsed string) (InferenceResponse, error) {
	c.setStatus(state, StatusInProgress)

	activations := []byte(req.Prompt)
	start := c.clock.Now()
	var tokensGenerated int

	for i, replica := range pipeline {
		c.setStage(state, i)

		output, tokens, latencyMS, err := c.sendStage(ctx, replica, activations, req)
		if err != nil {
			reason := err.Error()
			c.fail(state, replica.ShardID, reason)
			c.log.WithFields(logrus.Fields{
				"request_id": req.RequestID, "shard_id": replica.ShardID, "stage": i,
			}).Warn("pipeline stage failed")
			return InferenceResponse{}, &InferenceFailed{ShardID: replica.ShardID, Reason: reason}
		}

		c.addLatency(state, ShardLatency{ShardID: replica.ShardID, PeerID: replica.PeerID, LatencyMS: latencyMS})
		activations = output
		tokensGenerated = tokens
	}

	c.setStatus(state, StatusCompleted)

	return InferenceResponse{
		RequestID:       req.RequestID,
		Text:            string(activations),
		TokensGenerated: tokensGenerated,
		TotalLatencyMS:  c.clock.Now().Sub(start).Milliseconds(),
		ShardLatencies:  c.latencies(state),
		StrategyUsed:    strategyUsed,
		Success:         true,
	}, nil
}

// sendStage builds and dispatches one EXECUTE_TASK command, registering it
// in the pending-response table under its own request-id and waiting for a
// matching response, a synthesized timeout, or ctx cancellation.
func (c *Coordinator) sendStage(ctx context.Context, replica cluster.ShardAnnouncement, activations []byte, req InferenceRequest) (output []byte, tokens int, latencyMS int64, err error) {
	stageReqID := uuid.NewString()
	cmd := protocol.CommandEnvelope{
		Command:   protocol.CmdExecuteTask,
		RequestID: stageReqID,
		From:      c.cfg.SelfID,
		To:        replica.PeerID.String(),
		Timestamp: c.clock.Now(),
		Params: map[string]interface{}{
			"task_type":   "ai_inference",
			"input_data":  string(activations),
			"max_tokens":  req.MaxTokens,
			"temperature": req.Temperature,
			"shard_id":    replica.ShardID,
			"layer_start": replica.LayerStart,
			"layer_end":   replica.LayerEnd,
		},
	}

	ch := c.pending.Register(stageReqID, c.cfg.StageDeadline)

	started := c.clock.Now()
	go func() {
		resp, sendErr := c.cfg.Sender.Send(ctx, replica.Multiaddr, cmd)
		if sendErr != nil {
			c.pending.Fail(stageReqID, sendErr)
			return
		}
		c.pending.Resolve(resp)
	}()

	select {
	case <-ctx.Done():
		return nil, 0, 0, ctx.Err()
	case resp := <-ch:
		elapsed := c.clock.Now().Sub(started).Milliseconds()
		switch resp.Status {
		case protocol.StatusSuccess:
			out, _ := resp.Result["output"].(string)
			tg, _ := resp.Result["tokens_generated"].(float64)
			return []byte(out), int(tg), elapsed, nil
		case protocol.StatusTimeout:
			return nil, 0, elapsed, fmt.Errorf("timeout waiting for shard %d", replica.ShardID)
		default:
			return nil, 0, elapsed, fmt.Errorf("%s", resp.Error)
		}
	}
}

func (c *Coordinator) setStage(state *PipelineState, stage int) {
	c.mu.Lock()
	state.CurrentStage = stage
	c.mu.Unlock()
}

func (c *Coordinator) setStatus(state *PipelineState, status Status) {
	c.mu.Lock()
	state.Status = status
	c.mu.Unlock()
}

func (c *Coordinator) addLatency(state *PipelineState, l ShardLatency) {
	c.mu.Lock()
	state.Latencies = append(state.Latencies, l)
	c.mu.Unlock()
}

func (c *Coordinator) latencies(state *PipelineState) []ShardLatency {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ShardLatency(nil), state.Latencies...)
}

func (c *Coordinator) fail(state *PipelineState, shardID int, reason string) {
	c.mu.Lock()
	state.Status = StatusFailed
	state.FailedStage = shardID
	state.FailureReason = reason
	c.mu.Unlock()
}
