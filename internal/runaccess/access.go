// Package runaccess reads run history through the daemon when it is up
// and straight from the store when it is not, behind one interface so
// CLI commands do not care which path served them.
package runaccess

import (
	"context"
	"fmt"
	"strings"

	"subcue/internal/api"
	"subcue/internal/ipc"
	"subcue/internal/runstore"
	"subcue/internal/services"
)

// Access provides run inspection regardless of IPC or direct store backing.
type Access interface {
	History(ctx context.Context, limit int) ([]api.Run, error)
	Show(ctx context.Context, runID string) (api.Run, []api.FileResult, error)
	RunLog(ctx context.Context, runID string, tail int) ([]string, error)
	Failures(ctx context.Context, onlySkipped bool) ([]api.Failure, error)
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(store *runstore.Store) Access {
	return &storeAccess{store: store}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) History(_ context.Context, limit int) ([]api.Run, error) {
	resp, err := a.client.RunHistory(limit)
	if err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

func (a *ipcAccess) Show(_ context.Context, runID string) (api.Run, []api.FileResult, error) {
	resp, err := a.client.RunShow(runID)
	if err != nil {
		return api.Run{}, nil, err
	}
	return resp.Run, resp.Files, nil
}

func (a *ipcAccess) RunLog(_ context.Context, runID string, tail int) ([]string, error) {
	resp, err := a.client.RunLog(ipc.RunLogRequest{RunID: runID, TailLines: tail})
	if err != nil {
		return nil, err
	}
	return resp.Lines, nil
}

func (a *ipcAccess) Failures(_ context.Context, onlySkipped bool) ([]api.Failure, error) {
	resp, err := a.client.FailuresList(onlySkipped)
	if err != nil {
		return nil, err
	}
	return resp.Failures, nil
}

type storeAccess struct {
	store *runstore.Store
}

func (a *storeAccess) History(ctx context.Context, limit int) ([]api.Run, error) {
	runs, err := a.store.RunHistory(ctx, limit)
	if err != nil {
		return nil, err
	}
	return api.FromRuns(runs), nil
}

func (a *storeAccess) Show(ctx context.Context, runID string) (api.Run, []api.FileResult, error) {
	run, err := a.store.GetRun(ctx, runID)
	if err != nil {
		return api.Run{}, nil, err
	}
	if run == nil {
		return api.Run{}, nil, fmt.Errorf("run %s: %w", runID, services.ErrNotFound)
	}
	files, err := a.store.ListFileResults(ctx, runID)
	if err != nil {
		return api.Run{}, nil, err
	}
	return api.FromRun(run), api.FromFileResults(files), nil
}

func (a *storeAccess) RunLog(ctx context.Context, runID string, tail int) ([]string, error) {
	run, err := a.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s: %w", runID, services.ErrNotFound)
	}
	if strings.TrimSpace(run.Log) == "" {
		return nil, nil
	}
	lines := strings.Split(strings.TrimRight(run.Log, "\n"), "\n")
	if tail > 0 && len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	return lines, nil
}

func (a *storeAccess) Failures(ctx context.Context, onlySkipped bool) ([]api.Failure, error) {
	records, err := a.store.ListFailures(ctx, onlySkipped)
	if err != nil {
		return nil, err
	}
	return api.FromFailures(records), nil
}
