// Package logging assembles structured slog loggers and formatting helpers used
// across Subcue services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so processing code can tag log
// lines with run IDs, subtitle file paths, and engine names automatically. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail, plus an in-memory stream hub that the daemon uses to serve live log
// tails over IPC.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape and routing guarantees as the rest of the system.
package logging
