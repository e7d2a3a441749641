// Package store provides the SQLite-backed state of a task directory.
//
// The store holds:
//   - Settings: task parameters saved by prepare and read by later phases
//   - Runs: one record per phase execution, ordered by seq
//   - Cases: every FISPACT case with its status and last error
//   - Results: the (kind, time) -> frame path index written by fetch
//
// # Ordering
//
// Runs are ordered by seq INTEGER, never by timestamps. Case and result
// queries order by their keys so listings are stable.
//
// # Connections
//
// Every connection runs in WAL mode with synchronous=NORMAL, a five second
// busy timeout and foreign keys enforced, so case and result rows can only
// reference recorded runs. Open refuses a store that cannot switch to WAL.
//
// Writes are issued from a single goroutine of the caller.
package store
