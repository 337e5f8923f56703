// Package worker implements the shard worker state machine: the process
// that joins the DHT, announces a shard replica, loads the shard's weight
// file over the chunk-transfer subsystem, and serves EXECUTE_TASK requests
// for its layer range until told to drain and shut down.
//
// # States
//
// Init -> Joining -> AnnouncedUnloaded -> (Loading) -> Loaded -> Draining ->
// Terminated. A Worker is a single explicit state-machine value: the
// current Phase plus phase-specific fields, rather than a scatter of
// independent booleans.
//
// # Commands
//
// Dispatch handles all ten commands a coordinator may send: GET_CAPABILITIES,
// LOAD_SHARD, EXECUTE_TASK, LIST_FILES, GET_STATUS, SET_OPERATION_MODE,
// PAUSE, RESUME, RESTART, SHUTDOWN, plus the two chunk-transfer commands
// (REQUEST_METADATA, REQUEST_PIECE) answered on behalf of the local
// transfer.Seeder. Every command yields exactly one ResponseEnvelope.
package worker
