// Package daemon coordinates the long-running subcue process.
//
// It wires configuration, the run store, the workflow coordinator, and the
// retention sweeper into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon exposes the run, history, failure,
// and store maintenance operations the IPC server publishes, and owns the
// shutdown handshake that lets a remote stop request unwind the hosting
// process cleanly.
//
// Keep orchestration logic here: run mechanics live in workflow and
// processor while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
