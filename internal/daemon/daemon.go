package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"subcue/internal/config"
	"subcue/internal/logging"
	"subcue/internal/notifications"
	"subcue/internal/runstore"
	"subcue/internal/services"
	"subcue/internal/workflow"
)

// Daemon owns the long-lived pieces of a subcue process: the run
// coordinator, the run store, the retention sweeper, and the file
// lock that enforces single-instance execution. The IPC server and
// the CLI both talk to the daemon through the methods below.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *runstore.Store
	coord    *workflow.Coordinator
	notifier notifications.Service
	logPath  string
	logHub   *logging.StreamHub

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	shutdownMu sync.Mutex
	shutdown   func()
}

// New constructs a daemon with initialized dependencies. The logger,
// log path, hub, and notifier may be nil or empty when the caller has
// no use for them (tests mostly).
func New(cfg *config.Config, store *runstore.Store, logger *slog.Logger, coord *workflow.Coordinator, logPath string, logHub *logging.StreamHub, notifier notifications.Service) (*Daemon, error) {
	if cfg == nil || store == nil || coord == nil {
		return nil, errors.New("daemon requires config, store, and coordinator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "subcued.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		coord:    coord,
		notifier: notifier,
		logPath:  logPath,
		logHub:   logHub,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, launches the coordinator, and kicks
// off the background retention sweeper.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another subcue daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.coord.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start coordinator: %w", err)
	}

	d.wg.Add(1)
	go d.sweepLoop(d.ctx)

	d.running.Store(true)
	d.logger.Info("subcue daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts the coordinator and sweeper and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.coord.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("subcue daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start has completed and Stop has not.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// OnShutdown registers the callback RequestShutdown invokes. The
// daemon-run loop registers a function that releases its signal wait.
func (d *Daemon) OnShutdown(fn func()) {
	d.shutdownMu.Lock()
	d.shutdown = fn
	d.shutdownMu.Unlock()
}

// RequestShutdown asks the hosting process to exit. The callback runs
// at most once; callers get their RPC reply before the daemon winds
// down because the callback defers the actual stop.
func (d *Daemon) RequestShutdown() {
	d.shutdownMu.Lock()
	fn := d.shutdown
	d.shutdown = nil
	d.shutdownMu.Unlock()
	if fn != nil {
		fn()
	}
}

// sweepLoop applies the retention policy on a fixed interval until the
// daemon context ends.
func (d *Daemon) sweepLoop(ctx context.Context) {
	defer d.wg.Done()

	interval := time.Duration(d.cfg.Retention.SweepInterval) * time.Second
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Warn("retention sweep failed", logging.Error(err))
			}
		}
	}
}

// StartRun launches a new synchronization run.
func (d *Daemon) StartRun(ctx context.Context) (*runstore.Run, error) {
	return d.coord.StartRun(ctx)
}

// StopRun cancels the active run.
func (d *Daemon) StopRun() error {
	return d.coord.StopRun()
}

// SkipFile cancels one file within the active run.
func (d *Daemon) SkipFile(path string) error {
	return d.coord.SkipFile(path)
}

// RunHistory returns the most recent runs, newest first.
func (d *Daemon) RunHistory(ctx context.Context, limit int) ([]*runstore.Run, error) {
	return d.store.RunHistory(ctx, limit)
}

// RunDetail loads one run together with its per-file results.
func (d *Daemon) RunDetail(ctx context.Context, id string) (*runstore.Run, []*runstore.FileResult, error) {
	run, err := d.store.GetRun(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if run == nil {
		return nil, nil, fmt.Errorf("run %s: %w", id, services.ErrNotFound)
	}
	files, err := d.store.ListFileResults(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return run, files, nil
}

// RunLog returns the stored log lines for a run, optionally limited to
// the final tail lines.
func (d *Daemon) RunLog(ctx context.Context, id string, tail int) ([]string, error) {
	run, err := d.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s: %w", id, services.ErrNotFound)
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

// Failures lists engine failure records, optionally only skipped pairs.
func (d *Daemon) Failures(ctx context.Context, onlySkipped bool) ([]*runstore.FailureRecord, error) {
	return d.store.ListFailures(ctx, onlySkipped)
}

// ResetFailures clears failure streaks for a file, or for a single
// (file, engine) pair when engine is non-empty.
func (d *Daemon) ResetFailures(ctx context.Context, file, engine string) (int64, error) {
	cleared, err := d.store.ResetSkip(ctx, file, engine)
	if err != nil {
		return 0, err
	}
	if cleared > 0 {
		d.logger.Info("failure records reset",
			logging.String(logging.FieldFile, file),
			logging.String(logging.FieldEngine, engine),
			logging.Int64("cleared", cleared))
	}
	return cleared, nil
}

// StoreHealth runs the database diagnostics.
func (d *Daemon) StoreHealth(ctx context.Context) (runstore.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// Sweep applies the configured retention policy once.
func (d *Daemon) Sweep(ctx context.Context) (runstore.SweepResult, error) {
	policy := runstore.SweepPolicy{
		KeepDays:    d.cfg.Retention.KeepDays,
		TrimDays:    d.cfg.Retention.TrimDays,
		MaxLogBytes: d.cfg.Retention.MaxLogBytes,
	}
	result, err := d.store.Sweep(ctx, policy)
	if err != nil {
		return runstore.SweepResult{}, err
	}
	if result.RunsDeleted > 0 || result.RunsTrimmed > 0 {
		d.logger.Info("retention sweep",
			logging.Int64("runs_deleted", result.RunsDeleted),
			logging.Int64("runs_trimmed", result.RunsTrimmed),
			logging.Int64("bytes_trimmed", result.BytesTrimmed))
	}
	return result, nil
}

// Vacuum compacts the database file and reports its size before and
// after.
func (d *Daemon) Vacuum(ctx context.Context) (int64, int64, error) {
	before, err := d.store.Size(ctx)
	if err != nil {
		return 0, 0, err
	}
	if err := d.store.Vacuum(ctx); err != nil {
		return 0, 0, err
	}
	after, err := d.store.Size(ctx)
	if err != nil {
		return 0, 0, err
	}
	d.logger.Info("database vacuumed",
		logging.Int64("size_before", before),
		logging.Int64("size_after", after))
	return before, after, nil
}

// TestNotification sends a test message through the configured ntfy
// topic. Without a topic it reports the misconfiguration rather than
// erroring.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// LogStream exposes the in-memory log hub, or nil when the daemon was
// built without one.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.logHub
}
