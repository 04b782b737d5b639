// Package preflight validates the runtime environment: directories the
// daemon writes to, media roots it reads from, the state store, and the
// configured engine binaries. The daemon logs a snapshot at startup and
// the CLI exposes the same checks as `subcue preflight`.
package preflight

import (
	"context"

	"subcue/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the environment checks for the given config: directory
// access, media roots, and the state store. Engine availability is
// reported separately through Engines.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if len(cfg.Paths.MediaDirs) == 0 {
		results = append(results, Result{Name: "Media roots", Detail: "no media roots configured"})
	}
	for _, root := range cfg.Paths.MediaDirs {
		results = append(results, CheckMediaRoot(root))
	}

	results = append(results, CheckStore(ctx, cfg))

	return results
}

// Passed reports whether every check in results succeeded.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
