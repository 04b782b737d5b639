package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"subcue/internal/api"
	"subcue/internal/daemonctl"
	"subcue/internal/runstore"
	"subcue/internal/testsupport"
)

func TestProcessInfoMissingSocket(t *testing.T) {
	running, pid, err := daemonctl.ProcessInfo(filepath.Join(t.TempDir(), "missing.sock"))
	if err != nil {
		t.Fatalf("ProcessInfo: %v", err)
	}
	if running || pid != 0 {
		t.Fatalf("expected not running, got running=%v pid=%d", running, pid)
	}
}

func TestStopAndTerminateNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := daemonctl.StopAndTerminate(cfg.SocketPath(), cfg, time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestWaitForClientTimesOut(t *testing.T) {
	_, err := daemonctl.WaitForClient(filepath.Join(t.TempDir(), "missing.sock"), 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "daemon failed to start") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeriveLogDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if got := daemonctl.DeriveLogDir("/var/log/subcue/subcued.lock", "", nil); got != "/var/log/subcue" {
		t.Fatalf("lock path should win, got %q", got)
	}
	if got := daemonctl.DeriveLogDir("", "/var/log/subcue/subcue-x.log", nil); got != "/var/log/subcue" {
		t.Fatalf("log path fallback, got %q", got)
	}
	if got := daemonctl.DeriveLogDir("", "", cfg); got != cfg.Paths.LogDir {
		t.Fatalf("config fallback, got %q want %q", got, cfg.Paths.LogDir)
	}
	if got := daemonctl.DeriveLogDir("", "", nil); got != "" {
		t.Fatalf("expected empty log dir, got %q", got)
	}
}

func TestForceKillProcessRefusesCurrentProcess(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "subcued.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
	if _, err := daemonctl.ForceKillProcess(pidPath, "", 0); err == nil || !strings.Contains(err.Error(), "refusing to kill") {
		t.Fatalf("expected refusal, got %v", err)
	}
}

func TestForceKillProcessRequiresPID(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "subcued.pid")
	if _, err := daemonctl.ForceKillProcess(pidPath, "", 0); err == nil || !strings.Contains(err.Error(), "unable to determine daemon pid") {
		t.Fatalf("expected pid error, got %v", err)
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, 2, 4)
	if _, err := store.FinishRun(context.Background(), run.ID, runstore.RunStatusCompleted); err != nil {
		t.Fatalf("finish run: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	snapshot, err := daemonctl.BuildStatusSnapshot(context.Background(), cfg.SocketPath(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snapshot.Status.Running {
		t.Fatal("expected daemon reported as not running")
	}
	if snapshot.Status.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("database path = %q, want %q", snapshot.Status.DatabasePath, cfg.DatabasePath())
	}
	if snapshot.Status.SocketPath != cfg.SocketPath() {
		t.Fatalf("socket path = %q, want %q", snapshot.Status.SocketPath, cfg.SocketPath())
	}
	last := snapshot.Status.Coordinator.LastRun
	if last == nil || last.ID != run.ID {
		t.Fatalf("last run = %+v, want run %s", last, run.ID)
	}
	if len(snapshot.Status.Engines) != 2 {
		t.Fatalf("expected 2 engine statuses, got %d", len(snapshot.Status.Engines))
	}
	if len(snapshot.SystemChecks) == 0 || snapshot.SystemChecks[0].Label != "Daemon" || snapshot.SystemChecks[0].Severity != "warn" {
		t.Fatalf("unexpected first system check: %+v", snapshot.SystemChecks)
	}
	if len(snapshot.MediaPaths) != 1 || snapshot.MediaPaths[0].Severity != "ok" {
		t.Fatalf("unexpected media path checks: %+v", snapshot.MediaPaths)
	}
	if snapshot.EngineSummary.Enabled != 2 || snapshot.EngineSummary.Severity != "ok" {
		t.Fatalf("unexpected engine summary: %+v", snapshot.EngineSummary)
	}
}

func TestBuildEngineSummary(t *testing.T) {
	engines := []api.EngineStatus{
		{Name: "ffsubsync", Enabled: true, Available: true},
		{Name: "autosubsync", Enabled: true, Available: false},
		{Name: "retimer", Enabled: false, Available: false},
	}
	summary := daemonctl.BuildEngineSummary(engines)
	if summary.Total != 3 || summary.Enabled != 2 || summary.Available != 1 {
		t.Fatalf("unexpected summary counts: %+v", summary)
	}
	if summary.Severity != "warn" {
		t.Fatalf("severity = %q, want warn", summary.Severity)
	}
	if summary.Detail != "1/2 enabled engines available" {
		t.Fatalf("detail = %q", summary.Detail)
	}

	if got := daemonctl.BuildEngineSummary(nil); got.Severity != "error" {
		t.Fatalf("empty summary severity = %q, want error", got.Severity)
	}
}
