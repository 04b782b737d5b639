// Package runstore persists synchronization runs, per-file results,
// and engine failure history in a SQLite database.
//
// The store is the daemon's single source of truth. Runs move from
// running to completed or cancelled; each file inside a run moves
// from pending through processing to completed, skipped, or error.
// Engine outcomes accumulate in a per-file JSON map, and counters on
// the run row advance in the same transaction as the write they
// describe. Failure history lives in its own table keyed by (file,
// engine) and deliberately survives run retention, so an engine that
// keeps failing on one file stays skipped across sweeps.
//
// Every mutating method notifies subscribed listeners synchronously
// after the write commits, which lets the workflow layer observe run
// starts without polling.
package runstore
