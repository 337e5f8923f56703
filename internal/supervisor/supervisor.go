package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/swarmweave/internal/discovery"
)

// DefaultPollInterval is WaitOnline's Discovery Index poll interval.
const DefaultPollInterval = 200 * time.Millisecond

// Config describes how to launch a worker process for a given shard.
type Config struct {
	WorkerBinary string   // path to the worker executable
	WorkerArgs   []string // fixed arguments passed to every spawn
	BaseEnv      []string // extra KEY=VALUE pairs applied to every spawn, on top of os.Environ()
	BasePort     int      // spawned worker i listens on BasePort+shardID
}

// process tracks one running worker and the shard it was spawned for.
type process struct {
	cmd     *exec.Cmd
	nodeID  string
	shardID int
}

// Supervisor spawns and terminates shard-worker processes. Spawn is
// idempotent per shard-id; WaitOnline polls the Discovery Index rather than
// the process, since a worker can be running yet stuck (model load hung,
// deadlocked) without ever exiting.
type Supervisor struct {
	cfg Config
	idx *discovery.Index
	log *logrus.Entry

	mu    sync.Mutex
	procs map[int]*process
}

// New creates a Supervisor that launches cfg.WorkerBinary and watches idx
// for the resulting worker's announcement.
func New(cfg Config, idx *discovery.Index) *Supervisor {
	return &Supervisor{
		cfg:   cfg,
		idx:   idx,
		log:   logrus.WithField("component", "supervisor"),
		procs: make(map[int]*process),
	}
}

// Spawn starts a worker process for shardID, or returns the existing one's
// node-id if already running (idempotent).
func (s *Supervisor) Spawn(ctx context.Context, shardID int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.procs[shardID]; ok {
		return p.nodeID, nil
	}

	nodeID := fmt.Sprintf("spawned-shard-%d", shardID)
	listen := fmt.Sprintf(":%d", s.cfg.BasePort+shardID)

	cmd := exec.CommandContext(ctx, s.cfg.WorkerBinary, s.cfg.WorkerArgs...)
	cmd.Env = append(os.Environ(), s.cfg.BaseEnv...)
	cmd.Env = append(cmd.Env,
		fmt.Sprintf("WORKER_ID=%s", nodeID),
		fmt.Sprintf("WORKER_SHARD_ID=%d", shardID),
		fmt.Sprintf("WORKER_LISTEN=%s", listen),
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("supervisor: start worker for shard %d: %w", shardID, err)
	}

	p := &process{cmd: cmd, nodeID: nodeID, shardID: shardID}
	s.procs[shardID] = p
	go s.reap(p)

	s.log.WithFields(logrus.Fields{"shard_id": shardID, "node_id": nodeID, "pid": cmd.Process.Pid}).Info("spawned worker")
	return nodeID, nil
}

// reap waits for a spawned process to exit and removes its bookkeeping
// entry. An exit here is logged but never fed back as a coordinator-visible
// signal; the Discovery Index is the only authority on shard liveness.
func (s *Supervisor) reap(p *process) {
	err := p.cmd.Wait()
	s.mu.Lock()
	if s.procs[p.shardID] == p {
		delete(s.procs, p.shardID)
	}
	s.mu.Unlock()
	if err != nil {
		s.log.WithFields(logrus.Fields{"shard_id": p.shardID, "node_id": p.nodeID}).WithError(err).Warn("worker process exited")
	}
}

// WaitOnline blocks until shardID stops appearing in the index's missing
// set, or timeout elapses.
func (s *Supervisor) WaitOnline(ctx context.Context, shardID int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(DefaultPollInterval)
	defer ticker.Stop()

	for {
		status := s.idx.GetStatus()
		missing := false
		for _, m := range status.Missing {
			if m == shardID {
				missing = true
				break
			}
		}
		if !missing {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("supervisor: shard %d did not come online within %s", shardID, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Terminate sends SIGTERM to shardID's worker process, if one is tracked.
// Idempotent: terminating an already-gone or never-spawned shard is a no-op.
func (s *Supervisor) Terminate(_ context.Context, shardID int) error {
	s.mu.Lock()
	p, ok := s.procs[shardID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("supervisor: terminate shard %d: %w", shardID, err)
	}
	return nil
}

// TerminateAll signals every currently tracked worker process.
func (s *Supervisor) TerminateAll() error {
	s.mu.Lock()
	shardIDs := make([]int, 0, len(s.procs))
	for id := range s.procs {
		shardIDs = append(shardIDs, id)
	}
	s.mu.Unlock()

	var firstErr error
	for _, id := range shardIDs {
		if err := s.Terminate(context.Background(), id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
