package daemon

import (
	"context"
	"os"

	"subcue/internal/api"
	"subcue/internal/config"
	"subcue/internal/preflight"
)

const recentLogLines = 10

// Status assembles the runtime snapshot served over IPC. Store
// diagnostics are intentionally absent; they have their own endpoint
// because the integrity check is too slow for a status poll.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.SocketPath(),
		LogPath:      d.logPath,
		Engines:      EngineStatuses(d.cfg),
	}
	status.Coordinator = d.coordinatorStatus(ctx)
	return status
}

func (d *Daemon) coordinatorStatus(ctx context.Context) api.CoordinatorStatus {
	cs := api.CoordinatorStatus{
		Running:   d.running.Load(),
		RecentLog: d.coord.RecentLog(recentLogLines),
	}
	if active, err := d.store.ActiveRun(ctx); err == nil && active != nil {
		converted := api.FromRun(active)
		cs.ActiveRun = &converted
	}
	// LastRun is the newest terminal run, skipping past the active one.
	if runs, err := d.store.RunHistory(ctx, 2); err == nil {
		for _, run := range runs {
			if run.Status.Terminal() {
				converted := api.FromRun(run)
				cs.LastRun = &converted
				break
			}
		}
	}
	return cs
}

// EngineStatuses reports the configured engines and whether their
// binaries resolve on PATH.
func EngineStatuses(cfg *config.Config) []api.EngineStatus {
	checks := preflight.Engines(cfg)
	statuses := make([]api.EngineStatus, 0, len(checks))
	for _, check := range checks {
		statuses = append(statuses, api.EngineStatus{
			Name:      check.Name,
			Command:   check.Command,
			Enabled:   check.Enabled,
			Available: check.Available,
			Detail:    check.Detail,
		})
	}
	return statuses
}
