// Package supervisor implements the Node Supervisor: it boots worker
// processes on demand (for the SpawnNodes strategy) and tears them down,
// but never treats process exit status as the source of truth for whether
// a shard is alive — that belongs to the Discovery Index. A worker that
// hangs without crashing looks identical to a live one from exec's point of
// view; only its announcement going stale in the index tells the rest of
// the system it is gone.
package supervisor
