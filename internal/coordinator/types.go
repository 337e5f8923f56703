package coordinator

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/dreamware/swarmweave/internal/discovery"
)

// InferenceRequest is an admitted request for a completion, carrying its own
// globally unique request-id and generation parameters.
type InferenceRequest struct {
	RequestID   string
	Prompt      string
	MaxTokens   int
	Temperature float64
	TopP        float64
	CreatedAt   time.Time
	Priority    discovery.Priority
}

// ShardLatency records one completed pipeline stage's contribution to a
// request's latency, in the order stages completed.
type ShardLatency struct {
	ShardID   int
	PeerID    peer.ID
	LatencyMS int64
}

// InferenceResponse is the terminal success result of driving a pipeline to
// completion.
type InferenceResponse struct {
	RequestID       string
	Text            string
	TokensGenerated int
	TotalLatencyMS  int64
	ShardLatencies  []ShardLatency
	StrategyUsed    string
	Success         bool
}

// Status is the terminal or in-flight status of one request's PipelineState.
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PipelineState is the per-in-flight-request bookkeeping record: current
// stage index, collected stage latencies so far, and terminal status. It is
// created at request admission and removed once the request reaches a
// terminal status.
type PipelineState struct {
	RequestID     string
	CurrentStage  int
	Latencies     []ShardLatency
	Status        Status
	FailedStage   int
	FailureReason string
}
