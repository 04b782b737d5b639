// Package services defines shared utilities consumed by the run coordinator
// and external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, file paths, engine names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification uniform across components.
//
// Use these helpers when wiring new engine or store logic so operational
// behaviour (error handling, observability) stays consistent.
package services
