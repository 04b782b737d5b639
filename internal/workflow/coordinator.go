package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"subcue/internal/config"
	"subcue/internal/engine"
	"subcue/internal/logging"
	"subcue/internal/notifications"
	"subcue/internal/processor"
	"subcue/internal/runstore"
	"subcue/internal/services"
)

// settleTimeout bounds the store writes that finalize a run. Settlement
// uses a fresh context so a daemon shutdown cannot leave the Run row
// marked running.
const settleTimeout = 10 * time.Second

// Coordinator owns the single-active-run invariant. It launches runs in
// the background, mirrors processor events into the store, and settles
// the Run row when the work ends. It is the store's sole writer for run
// and file state.
type Coordinator struct {
	cfg      *config.Config
	store    *runstore.Store
	proc     *processor.Processor
	notifier notifications.Service
	logger   *slog.Logger

	mu          sync.Mutex
	baseCtx     context.Context
	cancel      context.CancelFunc
	running     bool
	inFlight    bool
	runID       string
	pendingStop bool
	started     chan *runstore.Run

	wg sync.WaitGroup
}

// Option configures optional Coordinator behavior.
type Option func(*coordinatorOptions)

type coordinatorOptions struct {
	notifier notifications.Service
	runner   *engine.Runner
}

// WithNotifier overrides the notification service (used in tests).
func WithNotifier(notifier notifications.Service) Option {
	return func(o *coordinatorOptions) {
		o.notifier = notifier
	}
}

// WithRunner overrides the engine runner (used in tests).
func WithRunner(runner *engine.Runner) Option {
	return func(o *coordinatorOptions) {
		o.runner = runner
	}
}

// New constructs a Coordinator wired to the given store.
func New(cfg *config.Config, store *runstore.Store, logger *slog.Logger, opts ...Option) *Coordinator {
	options := &coordinatorOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := options.notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	c := &Coordinator{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "coordinator"),
	}
	c.proc = processor.New(cfg, store, options.runner, c, logger)
	return c
}

// Start accepts run requests from here on. ctx is the daemon context:
// cancelling it interrupts in-flight engine processes and is treated as
// a stop for any active run.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.New("coordinator already running")
	}
	c.baseCtx, c.cancel = context.WithCancel(ctx)
	c.running = true
	return nil
}

// Stop cancels the base context and waits for any background run to
// settle.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
}

// StartRun launches a run and waits for it to either come into
// existence or fail first. The returned Run reflects the row as
// created, with its file results already seeded; processing continues
// in the background.
func (c *Coordinator) StartRun(ctx context.Context) (*runstore.Run, error) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil, ErrNotRunning
	}
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrRunInProgress
	}
	c.inFlight = true
	c.runID = ""
	c.pendingStop = false
	c.started = make(chan *runstore.Run, 1)
	started := c.started
	base := c.baseCtx
	c.mu.Unlock()

	c.proc.Reset()

	done := make(chan error, 1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := c.proc.ProcessRun(base)
		c.settle(err)
		done <- err
	}()

	select {
	case run := <-started:
		c.mu.Lock()
		stopped := c.pendingStop
		c.mu.Unlock()
		if stopped {
			return nil, ErrStoppedDuringInit
		}
		return run, nil
	case err := <-done:
		if err != nil {
			return nil, err
		}
		// The run raced to completion before the started branch fired.
		select {
		case run := <-started:
			return run, nil
		default:
			return nil, errors.New("run finished without starting")
		}
	}
}

// StopRun requests cancellation of the active run. Files already being
// processed finish their in-flight engine first; everything else ends
// skipped. When the run has no ID yet the stop is applied as soon as
// allocation completes.
func (c *Coordinator) StopRun() error {
	c.mu.Lock()
	if !c.inFlight {
		c.mu.Unlock()
		return ErrNoRunInProgress
	}
	c.pendingStop = true
	allocated := c.runID != ""
	c.mu.Unlock()

	if allocated {
		c.proc.CancelAll()
	}
	return nil
}

// SkipFile cancels one file of the active run. Idempotent.
func (c *Coordinator) SkipFile(path string) error {
	c.mu.Lock()
	inFlight := c.inFlight
	c.mu.Unlock()
	if !inFlight {
		return ErrNoRunInProgress
	}
	c.proc.CancelFile(path)
	return nil
}

// Active reports the in-flight run ID. The ID is empty while a run is
// still being allocated.
func (c *Coordinator) Active() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID, c.inFlight
}

// RecentLog exposes the processor's recent log lines for status output.
func (c *Coordinator) RecentLog(limit int) []string {
	return c.proc.RecentLog(limit)
}

// settle finalizes the Run row after the background work returns. It
// runs on a fresh context so shutdown cannot strand a running row, and
// clears the in-flight handle unconditionally.
func (c *Coordinator) settle(runErr error) {
	c.mu.Lock()
	runID := c.runID
	stopped := c.pendingStop
	base := c.baseCtx
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.runID = ""
		c.pendingStop = false
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	if runErr != nil {
		c.logger.Error("run aborted", logging.Error(runErr),
			logging.String(logging.FieldErrorHint, services.Hint(runErr)))
		c.notify(ctx, notifications.EventError, notifications.Payload{
			"error":   runErr,
			"context": "run",
		})
	}
	if runID == "" {
		return
	}

	status := runstore.RunStatusCompleted
	if stopped || runErr != nil || (base != nil && base.Err() != nil) {
		status = runstore.RunStatusCancelled
	}
	run, err := c.store.FinishRun(ctx, runID, status)
	if err != nil {
		c.logger.Error("failed to settle run",
			logging.String(logging.FieldRunID, runID), logging.Error(err))
		return
	}

	c.logger.Info("run settled",
		logging.String(logging.FieldRunID, run.ID),
		logging.String("status", string(run.Status)),
		logging.Int("completed", run.CompletedFiles),
		logging.Int("failed", run.FailedFiles),
		logging.Int("skipped", run.SkippedFiles),
		logging.Duration("duration", run.Duration()))

	switch run.Status {
	case runstore.RunStatusCancelled:
		c.notify(ctx, notifications.EventRunCancelled, notifications.Payload{
			"completed": run.CompletedFiles,
		})
	default:
		c.notify(ctx, notifications.EventRunCompleted, notifications.Payload{
			"completed": run.CompletedFiles,
			"failed":    run.FailedFiles,
			"skipped":   run.SkippedFiles,
			"duration":  run.Duration(),
		})
	}
}

func (c *Coordinator) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Debug("daemon shutting down, notification skipped")
			return
		}
		c.logger.Debug("notification failed", logging.Error(err))
	}
}
