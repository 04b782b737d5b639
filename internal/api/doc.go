// Package api defines wire-format types and converters for the IPC
// layer. It translates internal run-store models into transport-friendly
// DTOs that the CLI and other consumers can render without coupling to
// internal types.
//
// DTOs use camelCase JSON tags. Internal enums (runstore.RunStatus,
// runstore.FileStatus) are exposed as lowercase strings. Timestamps use
// RFC3339 with milliseconds. Per-file engine results are flattened into
// a name-sorted slice so payloads render deterministically.
package api
