package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"subcue/internal/config"
	"subcue/internal/daemon"
	"subcue/internal/engine"
	"subcue/internal/ipc"
	"subcue/internal/logging"
	"subcue/internal/runstore"
	"subcue/internal/testsupport"
	"subcue/internal/workflow"
)

func succeedingRunner(cfg *config.Config) *engine.Runner {
	runner := engine.NewRunner(cfg.Scan.OutputMarker)
	runner.WithCommandRunner(func(context.Context, string, ...string) (string, string, error) {
		return "offset applied", "", nil
	})
	return runner
}

func waitForTerminal(t *testing.T, store *runstore.Store, id string) *runstore.Run {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, err := store.GetRun(context.Background(), id)
		if err != nil {
			t.Fatalf("GetRun: %v", err)
		}
		if run != nil && run.Status.Terminal() {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s did not settle", id)
	return nil
}

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEngines(config.Engine{
		Name:    "goodsync",
		Command: "goodsync",
		Args:    []string{"{sub}", "{video}", "-o", "{out}"},
		Timeout: 30,
		Enabled: true,
	}))
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	hub := logging.NewStreamHub(128)
	coord := workflow.New(cfg, store, logger, workflow.WithRunner(succeedingRunner(cfg)))
	d, err := daemon.New(cfg, store, logger, coord, "", hub, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	pingResp, err := client.Ping()
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if pingResp.PID <= 0 {
		t.Fatalf("expected a PID, got %d", pingResp.PID)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Status.Running {
		t.Fatal("expected daemon to be running")
	}
	if status.Status.SocketPath != socket {
		t.Fatalf("socket path = %q, want %q", status.Status.SocketPath, socket)
	}

	// Run control against an idle coordinator.
	stopResp, err := client.RunStop()
	if err != nil {
		t.Fatalf("RunStop failed: %v", err)
	}
	if stopResp.Stopped {
		t.Fatal("expected idle stop to report nothing stopped")
	}
	if _, err := client.SkipFile("/media/movie.srt"); err == nil {
		t.Fatal("expected skip without a run to fail")
	} else if !strings.Contains(err.Error(), "no run in progress") {
		t.Fatalf("unexpected skip error: %v", err)
	}

	media := testsupport.MediaDir(cfg)
	testsupport.TouchVideo(t, filepath.Join(media, "movie.mkv"))
	testsupport.WriteSubtitle(t, filepath.Join(media, "movie.srt"))

	runResp, err := client.RunStart()
	if err != nil {
		t.Fatalf("RunStart failed: %v", err)
	}
	if runResp.Run.ID == "" || runResp.Run.TotalFiles != 1 {
		t.Fatalf("unexpected run: %+v", runResp.Run)
	}
	waitForTerminal(t, store, runResp.Run.ID)

	historyResp, err := client.RunHistory(10)
	if err != nil {
		t.Fatalf("RunHistory failed: %v", err)
	}
	if len(historyResp.Runs) == 0 || historyResp.Runs[0].Status != "completed" {
		t.Fatalf("unexpected history: %+v", historyResp.Runs)
	}

	showResp, err := client.RunShow(runResp.Run.ID)
	if err != nil {
		t.Fatalf("RunShow failed: %v", err)
	}
	if showResp.Run.ID != runResp.Run.ID || len(showResp.Files) != 1 {
		t.Fatalf("unexpected show response: %+v", showResp)
	}
	if showResp.Files[0].Status != "completed" {
		t.Fatalf("file status = %q, want completed", showResp.Files[0].Status)
	}

	logResp, err := client.RunLog(ipc.RunLogRequest{RunID: runResp.Run.ID})
	if err != nil {
		t.Fatalf("RunLog failed: %v", err)
	}
	found := false
	for _, line := range logResp.Lines {
		if strings.Contains(line, "scan complete") {
			found = true
		}
	}
	if !found {
		t.Fatalf("run log missing scan summary: %q", logResp.Lines)
	}

	if _, err := client.RunShow("missing"); err == nil {
		t.Fatal("expected RunShow for unknown run to fail")
	}

	// Live log streaming through the hub.
	for _, msg := range []string{"first", "second", "third"} {
		hub.Publish(logging.LogEvent{Level: "INFO", Message: msg})
	}
	tailResp, err := client.LogTail(ipc.LogTailRequest{Since: 0})
	if err != nil {
		t.Fatalf("LogTail failed: %v", err)
	}
	if len(tailResp.Events) != 3 || tailResp.Events[2].Message != "third" {
		t.Fatalf("unexpected log tail: %+v", tailResp.Events)
	}

	followDone := make(chan struct{})
	go func(since uint64) {
		resp, err := client.LogTail(ipc.LogTailRequest{Since: since, Follow: true, WaitMillis: 2000})
		if err != nil {
			t.Errorf("LogTail follow error: %v", err)
			return
		}
		if len(resp.Events) != 1 || resp.Events[0].Message != "fourth" {
			t.Errorf("unexpected follow events: %+v", resp.Events)
		}
		close(followDone)
	}(tailResp.Next)

	time.Sleep(100 * time.Millisecond)
	hub.Publish(logging.LogEvent{Level: "INFO", Message: "fourth"})

	select {
	case <-followDone:
	case <-time.After(10 * time.Second):
		t.Fatal("log tail follow timed out")
	}

	// Failure maintenance.
	subtitle := filepath.Join(media, "movie.srt")
	for i := 0; i < 3; i++ {
		if _, err := store.RecordFailure(ctx, subtitle, "badsync"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	failuresResp, err := client.FailuresList(true)
	if err != nil {
		t.Fatalf("FailuresList failed: %v", err)
	}
	if len(failuresResp.Failures) != 1 || !failuresResp.Failures[0].Skipped {
		t.Fatalf("unexpected failures: %+v", failuresResp.Failures)
	}
	resetResp, err := client.FailuresReset(subtitle, "badsync")
	if err != nil {
		t.Fatalf("FailuresReset failed: %v", err)
	}
	if resetResp.Cleared != 1 {
		t.Fatalf("cleared = %d, want 1", resetResp.Cleared)
	}
	failuresResp, err = client.FailuresList(true)
	if err != nil {
		t.Fatalf("FailuresList failed: %v", err)
	}
	if len(failuresResp.Failures) != 0 {
		t.Fatalf("expected no skipped records after reset, got %+v", failuresResp.Failures)
	}

	// Store maintenance.
	healthResp, err := client.StoreHealth()
	if err != nil {
		t.Fatalf("StoreHealth failed: %v", err)
	}
	if !healthResp.Health.IntegrityOK || !strings.HasSuffix(healthResp.Health.Path, "subcue.db") {
		t.Fatalf("unexpected health: %+v", healthResp.Health)
	}
	sweepResp, err := client.Sweep()
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if sweepResp.Outcome.RunsDeleted != 0 {
		t.Fatalf("sweep deleted fresh runs: %+v", sweepResp.Outcome)
	}
	vacuumResp, err := client.Vacuum()
	if err != nil {
		t.Fatalf("Vacuum failed: %v", err)
	}
	if vacuumResp.SizeBefore <= 0 || vacuumResp.SizeAfter <= 0 {
		t.Fatalf("unexpected vacuum sizes: %+v", vacuumResp)
	}

	notifyResp, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if notifyResp.Sent || notifyResp.Message != "ntfy topic not configured" {
		t.Fatalf("unexpected notification response: %+v", notifyResp)
	}

	shutdownFired := make(chan struct{})
	d.OnShutdown(func() { close(shutdownFired) })
	shutdownResp, err := client.Shutdown()
	if err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if !shutdownResp.Stopping {
		t.Fatal("expected shutdown to be acknowledged")
	}
	select {
	case <-shutdownFired:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown callback not invoked")
	}
}

func TestDialMissingSocket(t *testing.T) {
	if _, err := ipc.Dial(filepath.Join(t.TempDir(), "absent.sock")); err == nil {
		t.Fatal("expected dial to fail for missing socket")
	}
}
