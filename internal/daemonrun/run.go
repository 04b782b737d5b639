// Package daemonrun boots the subcue daemon process: logging, pid file,
// store, coordinator, IPC server, and the signal wait that keeps it all
// alive. Both `subcued` and the CLI's daemon-run command call Run.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"log/slog"

	"subcue/internal/config"
	"subcue/internal/daemon"
	"subcue/internal/ipc"
	"subcue/internal/logging"
	"subcue/internal/notifications"
	"subcue/internal/preflight"
	"subcue/internal/runstore"
	"subcue/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool

	// SocketPath overrides the IPC listen path derived from the config.
	SocketPath string
}

// Run starts the subcue daemon runtime loop. It returns when the signal
// context ends, which a remote shutdown request also triggers.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bootID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("subcue-%s.log", bootID))
	eventsPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("subcue-%s.events", bootID))
	logHub := logging.NewStreamHub(4096)
	eventArchive, archiveErr := logging.NewEventArchive(eventsPath)
	if archiveErr != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to initialize log archive: %v\n", archiveErr)
	} else if eventArchive != nil {
		logHub.AddSink(eventArchive)
		defer eventArchive.Close()
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		Stream:           logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update subcue.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "subcue-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "subcue-*.events", Exclude: []string{eventsPath}},
	)

	logPreflightSnapshot(signalCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "subcued.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := runstore.Open(cfg)
	if err != nil {
		logger.Error("open run store", logging.Error(err))
		return err
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)
	coord := workflow.New(cfg, store, logger, workflow.WithNotifier(notifier))

	d, err := daemon.New(cfg, store, logger, coord, logPath, logHub, notifier)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	// A Shutdown RPC releases the same wait a signal does.
	d.OnShutdown(cancel)

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed", logging.Error(err))
	}

	<-signalCtx.Done()
	logger.Info("subcue daemon shutting down")
	return nil
}

func logPreflightSnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	results := preflight.RunAll(ctx, cfg)
	failed := 0
	for _, result := range results {
		if result.Passed {
			continue
		}
		failed++
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail))
	}

	enabled, available := 0, 0
	for _, check := range preflight.Engines(cfg) {
		if !check.Enabled {
			continue
		}
		enabled++
		if check.Available {
			available++
			continue
		}
		logger.Warn("engine unavailable",
			logging.String(logging.FieldEngine, check.Name),
			logging.String("detail", check.Detail))
	}

	logger.Info("preflight snapshot",
		logging.Int("checks", len(results)),
		logging.Int("failed", failed),
		logging.Int("engines_enabled", enabled),
		logging.Int("engines_available", available))
}

// ensureCurrentLogPointer keeps LogDir/subcue.log pointing at the
// newest boot's log file so tail tooling has a stable path.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "subcue.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	// Symlinks can be unavailable on some filesystems.
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
