// Package daemonctl drives the daemon process from the CLI: detached
// launch, stop-and-terminate orchestration, and status snapshots that
// fall back to the run store when the daemon is not reachable.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"subcue/internal/api"
	"subcue/internal/config"
	"subcue/internal/daemon"
	"subcue/internal/ipc"
	"subcue/internal/preflight"
	"subcue/internal/runstore"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// Launch starts a detached subcue daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon-run"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		args = append(args, "--socket", socket)
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon when it is not reachable and
// reports the resulting state.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	client, err := ipc.Dial(socketPath)
	launched := false
	if err != nil {
		if launchErr := Launch(executablePath, opts); launchErr != nil {
			return StartResult{}, launchErr
		}
		client, err = WaitForClient(socketPath, waitTimeout)
		if err != nil {
			return StartResult{}, err
		}
		launched = true
	}
	defer client.Close()

	statusResp, statusErr := client.Status()
	if statusErr == nil && statusResp != nil && statusResp.Status.Running {
		if launched {
			return StartResult{State: StartStateStarted, Launched: true}, nil
		}
		return StartResult{State: StartStateAlreadyRunning}, nil
	}

	// Reachable but not running means startup is still settling or the
	// instance lock is contended; the daemon log has the detail.
	return StartResult{
		State:    StartStateRequested,
		Launched: launched,
		Message:  "daemon process is up but reports not running; check its log",
	}, nil
}

// WaitForShutdown waits for daemon IPC to disappear or report not-running.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			if os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
				return nil
			}
			lastErr = err
			time.Sleep(200 * time.Millisecond)
			continue
		}
		status, statusErr := client.Status()
		_ = client.Close()
		if statusErr == nil && status != nil && !status.Status.Running {
			return nil
		}
		if statusErr != nil {
			lastErr = statusErr
		} else {
			lastErr = fmt.Errorf("daemon still running")
		}
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for shutdown")
	}
	return fmt.Errorf("daemon did not stop: %w", lastErr)
}

// ProcessInfo returns whether daemon IPC is reachable and the daemon PID when available.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, statusErr := client.Status()
	if statusErr != nil {
		return true, 0, statusErr
	}
	pid := 0
	if status != nil {
		pid = status.Status.PID
	}
	return true, pid, nil
}

// DeriveLogDir determines the daemon log directory from status and config hints.
func DeriveLogDir(lockPath, logPath string, cfg *config.Config) string {
	if lockPath != "" {
		return filepath.Dir(lockPath)
	}
	if logPath != "" {
		return filepath.Dir(logPath)
	}
	if cfg != nil && strings.TrimSpace(cfg.Paths.LogDir) != "" {
		return cfg.Paths.LogDir
	}
	return ""
}

// ForceKillProcess sends SIGKILL to the daemon process and cleans pid/lock files.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	data, err := os.ReadFile(pidPath)
	if err == nil {
		pidStr := strings.TrimSpace(string(data))
		if pidStr != "" {
			if parsed, parseErr := strconv.Atoi(pidStr); parseErr == nil && parsed > 0 {
				pid = parsed
			}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// StopAndTerminate requests daemon shutdown and force-kills the process
// if it is still alive after gracePeriod.
func StopAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	statusResp, statusErr := client.Status()
	var lockPath, logPath string
	pid := 0
	if statusErr == nil && statusResp != nil {
		lockPath = statusResp.Status.LockFilePath
		logPath = statusResp.Status.LogPath
		pid = statusResp.Status.PID
	}
	resp, err := client.Shutdown()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid}
	if resp != nil {
		result.StopAcknowledged = resp.Stopping
	}

	_ = WaitForShutdown(socketPath, gracePeriod)
	alive, livePID, aliveErr := ProcessInfo(socketPath)
	if aliveErr != nil {
		alive = false
	}
	if !alive {
		return result, nil
	}

	currentPID := livePID
	if currentPID == 0 {
		currentPID = pid
	}
	logDir := DeriveLogDir(lockPath, logPath, cfg)
	if logDir == "" {
		return result, fmt.Errorf("unable to determine daemon log directory")
	}
	pidPath := filepath.Join(logDir, "subcued.pid")
	lockFile := filepath.Join(logDir, "subcued.lock")
	killedPID, killErr := ForceKillProcess(pidPath, lockFile, currentPID)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(socketPath string, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(socketPath, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(socketPath, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

func isDaemonUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

// StatusSnapshot bundles daemon status with derived render rows so the
// CLI shows one coherent view whether or not the daemon is reachable.
type StatusSnapshot struct {
	Status        api.DaemonStatus
	SystemChecks  []api.StatusLine
	MediaPaths    []api.StatusLine
	EngineSummary api.EngineSummary
}

// BuildStatusSnapshot collects daemon status over IPC and applies
// store-backed fallbacks when the daemon is not reachable.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	status := api.DaemonStatus{}

	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			status = resp.Status
		}
	}

	if !status.Running {
		fillOfflineStatus(ctx, cfg, &status)
	}

	return &StatusSnapshot{
		Status:        status,
		SystemChecks:  BuildSystemChecks(cfg, status),
		MediaPaths:    BuildMediaPathChecks(cfg),
		EngineSummary: BuildEngineSummary(status.Engines),
	}, nil
}

// fillOfflineStatus populates the fields a live daemon would have
// reported, reading straight from config and the run store.
func fillOfflineStatus(ctx context.Context, cfg *config.Config, status *api.DaemonStatus) {
	if status.SocketPath == "" {
		status.SocketPath = cfg.SocketPath()
	}
	if status.DatabasePath == "" {
		status.DatabasePath = cfg.DatabasePath()
	}
	if len(status.Engines) == 0 {
		status.Engines = daemon.EngineStatuses(cfg)
	}
	if status.Coordinator.LastRun != nil {
		return
	}

	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	store, openErr := runstore.Open(cfg)
	if openErr != nil {
		return
	}
	defer store.Close()
	runs, histErr := store.RunHistory(queryCtx, 5)
	if histErr != nil {
		return
	}
	for _, run := range runs {
		if run == nil || !run.Status.Terminal() {
			continue
		}
		converted := api.FromRun(run)
		status.Coordinator.LastRun = &converted
		break
	}
}

// BuildSystemChecks resolves the headline status rows combining daemon
// runtime state and configuration checks.
func BuildSystemChecks(cfg *config.Config, status api.DaemonStatus) []api.StatusLine {
	lines := make([]api.StatusLine, 0, 4)
	if status.Running {
		lines = append(lines, api.StatusLine{Label: "Daemon", Severity: "ok", Detail: fmt.Sprintf("Running (pid %d)", status.PID)})
	} else {
		lines = append(lines, api.StatusLine{Label: "Daemon", Severity: "warn", Detail: "Not running (run `subcue start`)"})
	}

	if active := status.Coordinator.ActiveRun; active != nil {
		done := active.CompletedFiles + active.SkippedFiles + active.FailedFiles
		lines = append(lines, api.StatusLine{
			Label:    "Active Run",
			Severity: "ok",
			Detail:   fmt.Sprintf("%s (%d/%d files)", active.ID, done, active.TotalFiles),
		})
	} else if last := status.Coordinator.LastRun; last != nil {
		lines = append(lines, api.StatusLine{
			Label:    "Last Run",
			Severity: severityForRunStatus(last.Status),
			Detail:   fmt.Sprintf("%s (%s)", last.Status, last.ID),
		})
	} else {
		lines = append(lines, api.StatusLine{Label: "Runs", Severity: "info", Detail: "No runs recorded"})
	}

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		lines = append(lines, api.StatusLine{Label: "Notifications", Severity: "ok", Detail: "Configured"})
	} else {
		lines = append(lines, api.StatusLine{Label: "Notifications", Severity: "warn", Detail: "Not configured"})
	}

	return lines
}

func severityForRunStatus(status string) string {
	switch status {
	case "completed":
		return "ok"
	case "cancelled":
		return "warn"
	default:
		return "info"
	}
}

// BuildMediaPathChecks resolves configured media root readiness.
func BuildMediaPathChecks(cfg *config.Config) []api.StatusLine {
	lines := make([]api.StatusLine, 0, len(cfg.Paths.MediaDirs))
	for _, dir := range cfg.Paths.MediaDirs {
		result := preflight.CheckMediaRoot(dir)
		severity := "error"
		if result.Passed {
			severity = "ok"
		}
		lines = append(lines, api.StatusLine{Label: dir, Severity: severity, Detail: result.Detail})
	}
	return lines
}

// BuildEngineSummary computes aggregate engine readiness.
func BuildEngineSummary(engines []api.EngineStatus) api.EngineSummary {
	if len(engines) == 0 {
		return api.EngineSummary{Severity: "error", Detail: "No engines configured"}
	}

	enabled := 0
	available := 0
	missing := 0
	for _, eng := range engines {
		if eng.Available {
			available++
		}
		if !eng.Enabled {
			continue
		}
		enabled++
		if !eng.Available {
			missing++
		}
	}

	severity := "ok"
	switch {
	case enabled == 0, missing == enabled:
		severity = "error"
	case missing > 0:
		severity = "warn"
	}
	detail := fmt.Sprintf("%d/%d enabled engines available", enabled-missing, enabled)
	if enabled == 0 {
		detail = "No engines enabled"
	}
	return api.EngineSummary{
		Total:     len(engines),
		Enabled:   enabled,
		Available: available,
		Severity:  severity,
		Detail:    detail,
	}
}
