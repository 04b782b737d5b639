package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"subcue/internal/engine"
	"subcue/internal/logging"
	"subcue/internal/notifications"
	"subcue/internal/processor"
	"subcue/internal/runstore"
)

// The Coordinator is the processor's Events implementation: every
// lifecycle callback is mirrored 1:1 into the store, synchronously.
var _ processor.Events = (*Coordinator)(nil)

// FilesFound allocates the Run and its FileResults. The run ID becomes
// visible to StopRun and settle before this returns, so a stop that
// raced the allocation is applied here; StartRun is not released until
// after that check.
func (c *Coordinator) FilesFound(ctx context.Context, files []processor.File) error {
	matched := 0
	for _, file := range files {
		if file.VideoPath != "" {
			matched++
		}
	}
	totalEngines := matched * len(c.cfg.EnabledEngines())

	run, err := c.store.CreateRun(ctx, uuid.NewString(), len(files), totalEngines)
	if err != nil {
		return fmt.Errorf("allocate run: %w", err)
	}

	c.mu.Lock()
	c.runID = run.ID
	stopped := c.pendingStop
	started := c.started
	c.mu.Unlock()

	seeds := make([]runstore.FileSeed, len(files))
	for i, file := range files {
		seeds[i] = runstore.FileSeed{Path: file.Path, VideoPath: file.VideoPath, Language: file.Language}
	}
	if err := c.store.CreateFileResults(ctx, run.ID, seeds); err != nil {
		return fmt.Errorf("allocate file results: %w", err)
	}

	if stopped {
		c.proc.CancelAll()
	}
	if started != nil {
		select {
		case started <- run:
		default:
		}
	}

	c.logger.Info("run started",
		logging.String(logging.FieldRunID, run.ID),
		logging.Int("files", len(files)),
		logging.Int("matched", matched),
		logging.Int("total_engines", totalEngines))
	c.notify(ctx, notifications.EventRunStarted, notifications.Payload{"count": len(files)})
	return nil
}

func (c *Coordinator) FileStarted(ctx context.Context, file processor.File) {
	c.mirror(ctx, "file started", file.Path, func(runID string) error {
		_, err := c.store.UpdateFileProcessing(ctx, runID, file.Path, "")
		return err
	})
}

func (c *Coordinator) EngineStarted(ctx context.Context, path, engineName string) {
	c.mirror(ctx, "engine started", path, func(runID string) error {
		_, err := c.store.UpdateFileProcessing(ctx, runID, path, engineName)
		return err
	})
}

// EngineCompleted merges the result and feeds the failure tracker.
// Skipped results (tracker skips, already-processed outputs) bypass the
// tracker: it counts actual invocations only.
func (c *Coordinator) EngineCompleted(ctx context.Context, path, engineName string, result engine.Result) {
	stored := runstore.EngineResult{
		Success:    result.Success,
		Skipped:    result.Skipped,
		DurationMS: result.Duration.Milliseconds(),
		Message:    result.Message,
		Stdout:     result.Stdout,
		Stderr:     result.Stderr,
	}
	c.mirror(ctx, "engine completed", path, func(runID string) error {
		_, err := c.store.MergeEngineResult(ctx, runID, path, engineName, stored)
		return err
	})

	if result.Skipped {
		return
	}
	var err error
	if result.Success {
		_, err = c.store.RecordSuccess(ctx, path, engineName)
	} else {
		_, err = c.store.RecordFailure(ctx, path, engineName)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("failure tracker update failed",
			logging.String(logging.FieldFile, path),
			logging.String(logging.FieldEngine, engineName),
			logging.Error(err))
	}
}

func (c *Coordinator) FileFinished(ctx context.Context, path string, status runstore.FileStatus, note string) {
	c.mirror(ctx, "file finished", path, func(runID string) error {
		_, err := c.store.FinishFile(ctx, runID, path, status, note)
		return err
	})
}

func (c *Coordinator) Log(ctx context.Context, line string) {
	c.mirror(ctx, "append run log", "", func(runID string) error {
		return c.store.AppendRunLog(ctx, runID, line)
	})
}

// mirror applies one store write against the active run. Writes that
// land before the run exists are dropped; failures are logged, never
// propagated, so a store hiccup cannot crash a run mid-flight.
func (c *Coordinator) mirror(ctx context.Context, op, path string, fn func(runID string) error) {
	c.mu.Lock()
	runID := c.runID
	c.mu.Unlock()
	if runID == "" {
		return
	}
	if err := fn(runID); err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Debug("daemon shutting down, store update skipped",
				logging.String("op", op))
			return
		}
		attrs := []logging.Attr{
			logging.String("op", op),
			logging.String(logging.FieldRunID, runID),
			logging.Error(err),
		}
		if path != "" {
			attrs = append(attrs, logging.String(logging.FieldFile, path))
		}
		c.logger.Error("store mirror failed", logging.Args(attrs...)...)
	}
}
