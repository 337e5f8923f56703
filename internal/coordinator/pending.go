package coordinator

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dreamware/swarmweave/internal/protocol"
)

// pendingSlot is a single-use completion slot: exactly one of a real
// response or a synthesized timeout/error response is ever sent on ch.
type pendingSlot struct {
	ch    chan protocol.ResponseEnvelope
	timer *clock.Timer
}

// PendingTable is the request-id-keyed (never transport-id-keyed) matching
// table between sent EXECUTE_TASK commands and their eventual responses.
// Insert happens on send, removal on receive or timeout — the only two
// writers, each holding the lock for the shortest possible span.
type PendingTable struct {
	mu    sync.Mutex
	clock clock.Clock
	slots map[string]*pendingSlot
}

// NewPendingTable creates a table using c as its time source (inject
// clock.NewMock() in tests to control deadline firing deterministically).
func NewPendingTable(c clock.Clock) *PendingTable {
	if c == nil {
		c = clock.New()
	}
	return &PendingTable{clock: c, slots: make(map[string]*pendingSlot)}
}

// Register opens a completion slot for requestID with the given deadline
// and returns the channel its eventual response (real or synthesized) will
// arrive on. Exceeding the deadline removes the slot and synthesizes a
// StatusTimeout response — no orphaned slot survives beyond deadline+ε.
func (t *PendingTable) Register(requestID string, deadline time.Duration) <-chan protocol.ResponseEnvelope {
	ch := make(chan protocol.ResponseEnvelope, 1)

	t.mu.Lock()
	slot := &pendingSlot{ch: ch}
	slot.timer = t.clock.AfterFunc(deadline, func() { t.expire(requestID) })
	t.slots[requestID] = slot
	t.mu.Unlock()

	return ch
}

// Resolve drains the slot matching resp's request-id, if one is still open.
// A response whose request_id has no pending slot is reported unmatched so
// the caller can log-and-drop it per the protocol's matching contract.
func (t *PendingTable) Resolve(resp protocol.ResponseEnvelope) bool {
	t.mu.Lock()
	slot, ok := t.slots[resp.RequestID]
	if ok {
		delete(t.slots, resp.RequestID)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	slot.timer.Stop()
	slot.ch <- resp
	return true
}

// Fail synthesizes an error response for requestID, used when the send
// itself failed (e.g. transport error) rather than timing out or answering.
func (t *PendingTable) Fail(requestID string, err error) {
	t.Resolve(protocol.ResponseEnvelope{
		RequestID: requestID,
		Status:    protocol.StatusError,
		Error:     err.Error(),
	})
}

func (t *PendingTable) expire(requestID string) {
	t.mu.Lock()
	slot, ok := t.slots[requestID]
	if ok {
		delete(t.slots, requestID)
	}
	t.mu.Unlock()

	if !ok {
		return
	}
	slot.ch <- protocol.ResponseEnvelope{
		RequestID: requestID,
		Status:    protocol.StatusTimeout,
		Error:     "deadline exceeded",
	}
}

// Len reports the number of currently open slots, used by tests and
// status reporting.
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
