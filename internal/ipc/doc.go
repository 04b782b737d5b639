// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs for every
// daemon operation: run control, history, failure maintenance, store
// diagnostics, and live log streaming. The server embeds the daemon while the
// client decorates calls with a dial timeout so CLI commands fail fast when
// the daemon is offline.
//
// Reuse these types when adding new RPC endpoints to keep the protocol stable
// and compatible with existing command implementations.
package ipc
