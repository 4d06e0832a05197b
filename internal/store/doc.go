// Package store provides SQLite-backed persistence for graph documents and
// session runs.
//
// The store holds:
//   - Graphs and ops: documents saved as op sequences, one row per op
//   - Passes: a summary of every evaluation pass of a session run
//   - Frames: the latest outcome of every frame of a session run
//
// Ordering uses logical counters (op seq, pass number, frame number),
// never timestamps, so reads are identical across replays. Op sequences
// are stored with a domain-separated SHA-256 hash of their encoding and
// verified on load.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Store implements session.Recorder.
package store
