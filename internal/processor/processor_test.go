package processor_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"subcue/internal/config"
	"subcue/internal/engine"
	"subcue/internal/processor"
	"subcue/internal/runstore"
	"subcue/internal/testsupport"
)

type finishedFile struct {
	status runstore.FileStatus
	note   string
}

type recordingEvents struct {
	mu            sync.Mutex
	files         []processor.File
	started       []string
	engineStarts  []string
	engineResults map[string][]engine.Result
	finished      map[string]finishedFile
	logs          []string
	filesFoundErr error
	onFilesFound  func([]processor.File)
}

func newRecordingEvents() *recordingEvents {
	return &recordingEvents{
		engineResults: make(map[string][]engine.Result),
		finished:      make(map[string]finishedFile),
	}
}

func (r *recordingEvents) FilesFound(ctx context.Context, files []processor.File) error {
	r.mu.Lock()
	r.files = append([]processor.File(nil), files...)
	hook := r.onFilesFound
	err := r.filesFoundErr
	r.mu.Unlock()
	if hook != nil {
		hook(files)
	}
	return err
}

func (r *recordingEvents) FileStarted(ctx context.Context, file processor.File) {
	r.mu.Lock()
	r.started = append(r.started, file.Path)
	r.mu.Unlock()
}

func (r *recordingEvents) EngineStarted(ctx context.Context, path, engineName string) {
	r.mu.Lock()
	r.engineStarts = append(r.engineStarts, path+"|"+engineName)
	r.mu.Unlock()
}

func (r *recordingEvents) EngineCompleted(ctx context.Context, path, engineName string, result engine.Result) {
	r.mu.Lock()
	key := path + "|" + engineName
	r.engineResults[key] = append(r.engineResults[key], result)
	r.mu.Unlock()
}

func (r *recordingEvents) FileFinished(ctx context.Context, path string, status runstore.FileStatus, note string) {
	r.mu.Lock()
	r.finished[path] = finishedFile{status: status, note: note}
	r.mu.Unlock()
}

func (r *recordingEvents) Log(ctx context.Context, line string) {
	r.mu.Lock()
	r.logs = append(r.logs, line)
	r.mu.Unlock()
}

func (r *recordingEvents) totalEngineResults() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, results := range r.engineResults {
		total += len(results)
	}
	return total
}

type fakeTracker struct {
	mu   sync.Mutex
	skip map[string]bool
}

func (f *fakeTracker) ShouldSkip(ctx context.Context, file, engineName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.skip[file+"|"+engineName], nil
}

func (f *fakeTracker) setSkip(file, engineName string) {
	f.mu.Lock()
	if f.skip == nil {
		f.skip = make(map[string]bool)
	}
	f.skip[file+"|"+engineName] = true
	f.mu.Unlock()
}

func syncEngines(names ...string) []config.Engine {
	engines := make([]config.Engine, 0, len(names))
	for _, name := range names {
		engines = append(engines, config.Engine{
			Name:    name,
			Command: name,
			Args:    []string{"{sub}", "{video}", "-o", "{out}"},
			Timeout: 30,
			Enabled: true,
		})
	}
	return engines
}

// scriptedRunner succeeds for commands named goodsync and fails the rest.
func scriptedRunner(marker string) *engine.Runner {
	runner := engine.NewRunner(marker)
	runner.WithCommandRunner(func(ctx context.Context, name string, args ...string) (string, string, error) {
		if name == "goodsync" {
			return "offset applied", "", nil
		}
		return "", "no sync points", fmt.Errorf("exit status 1")
	})
	return runner
}

func TestProcessRunMixedOutcomes(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEngines(syncEngines("goodsync", "badsync")...))
	media := testsupport.MediaDir(cfg)
	a := testsupport.WriteSubtitle(t, filepath.Join(media, "alpha.en.srt"))
	testsupport.TouchVideo(t, filepath.Join(media, "alpha.mkv"))
	b := testsupport.WriteSubtitle(t, filepath.Join(media, "beta.srt"))
	testsupport.TouchVideo(t, filepath.Join(media, "beta.mkv"))
	c := testsupport.WriteSubtitle(t, filepath.Join(media, "orphan.srt"))

	events := newRecordingEvents()
	proc := processor.New(cfg, &fakeTracker{}, scriptedRunner(cfg.Scan.OutputMarker), events, nil)
	if err := proc.ProcessRun(context.Background()); err != nil {
		t.Fatalf("process run failed: %v", err)
	}

	if len(events.files) != 3 {
		t.Fatalf("expected 3 files found, got %d", len(events.files))
	}
	if got := events.totalEngineResults(); got != 4 {
		t.Fatalf("expected 4 engine results (2 matched files x 2 engines), got %d", got)
	}
	if f := events.finished[a]; f.status != runstore.FileStatusCompleted {
		t.Fatalf("expected %s completed, got %+v", a, f)
	}
	if f := events.finished[b]; f.status != runstore.FileStatusCompleted {
		t.Fatalf("expected %s completed, got %+v", b, f)
	}
	if f := events.finished[c]; f.status != runstore.FileStatusError || f.note != "no matching video found" {
		t.Fatalf("expected %s to fail without a video, got %+v", c, f)
	}
	for _, key := range []string{a + "|badsync", b + "|badsync"} {
		results := events.engineResults[key]
		if len(results) != 1 || results[0].Success {
			t.Fatalf("expected recorded failure for %s, got %+v", key, results)
		}
	}
}

func TestProcessRunEngineOrderIsConfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEngines(syncEngines("goodsync", "badsync")...))
	media := testsupport.MediaDir(cfg)
	sub := testsupport.WriteSubtitle(t, filepath.Join(media, "movie.srt"))
	testsupport.TouchVideo(t, filepath.Join(media, "movie.mkv"))

	events := newRecordingEvents()
	proc := processor.New(cfg, &fakeTracker{}, scriptedRunner(cfg.Scan.OutputMarker), events, nil)
	if err := proc.ProcessRun(context.Background()); err != nil {
		t.Fatalf("process run failed: %v", err)
	}

	want := []string{sub + "|goodsync", sub + "|badsync"}
	if len(events.engineStarts) != len(want) {
		t.Fatalf("expected %d engine starts, got %v", len(want), events.engineStarts)
	}
	for i, key := range want {
		if events.engineStarts[i] != key {
			t.Fatalf("engine start %d: expected %s, got %s", i, key, events.engineStarts[i])
		}
	}
}

func TestProcessRunNoVideoSkipsEngines(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEngines(syncEngines("goodsync")...))
	sub := testsupport.WriteSubtitle(t, filepath.Join(testsupport.MediaDir(cfg), "orphan.srt"))

	events := newRecordingEvents()
	proc := processor.New(cfg, &fakeTracker{}, scriptedRunner(cfg.Scan.OutputMarker), events, nil)
	if err := proc.ProcessRun(context.Background()); err != nil {
		t.Fatalf("process run failed: %v", err)
	}

	if len(events.engineStarts) != 0 {
		t.Fatalf("expected no engine starts, got %v", events.engineStarts)
	}
	if f := events.finished[sub]; f.status != runstore.FileStatusError || f.note != "no matching video found" {
		t.Fatalf("unexpected terminal state: %+v", f)
	}
}

func TestProcessRunTrackerSkipSynthesizesResult(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEngines(syncEngines("badsync", "goodsync")...))
	media := testsupport.MediaDir(cfg)
	sub := testsupport.WriteSubtitle(t, filepath.Join(media, "movie.srt"))
	testsupport.TouchVideo(t, filepath.Join(media, "movie.mkv"))

	tracker := &fakeTracker{}
	tracker.setSkip(sub, "badsync")

	events := newRecordingEvents()
	proc := processor.New(cfg, tracker, scriptedRunner(cfg.Scan.OutputMarker), events, nil)
	if err := proc.ProcessRun(context.Background()); err != nil {
		t.Fatalf("process run failed: %v", err)
	}

	results := events.engineResults[sub+"|badsync"]
	if len(results) != 1 {
		t.Fatalf("expected synthetic result for badsync, got %v", results)
	}
	synthetic := results[0]
	if synthetic.Success || !synthetic.Skipped || synthetic.Duration != 0 {
		t.Fatalf("unexpected synthetic result: %+v", synthetic)
	}
	if synthetic.Message != "skipped: repeated failures" {
		t.Fatalf("unexpected synthetic message: %q", synthetic.Message)
	}
	if len(events.engineStarts) != 1 || !strings.HasSuffix(events.engineStarts[0], "|goodsync") {
		t.Fatalf("expected only goodsync to start, got %v", events.engineStarts)
	}
	if f := events.finished[sub]; f.status != runstore.FileStatusCompleted {
		t.Fatalf("expected completion via goodsync, got %+v", f)
	}
}

func TestProcessRunAllEnginesTrackerSkipped(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEngines(syncEngines("goodsync", "badsync")...))
	media := testsupport.MediaDir(cfg)
	sub := testsupport.WriteSubtitle(t, filepath.Join(media, "movie.srt"))
	testsupport.TouchVideo(t, filepath.Join(media, "movie.mkv"))

	tracker := &fakeTracker{}
	tracker.setSkip(sub, "goodsync")
	tracker.setSkip(sub, "badsync")

	events := newRecordingEvents()
	proc := processor.New(cfg, tracker, scriptedRunner(cfg.Scan.OutputMarker), events, nil)
	if err := proc.ProcessRun(context.Background()); err != nil {
		t.Fatalf("process run failed: %v", err)
	}

	if got := events.totalEngineResults(); got != 2 {
		t.Fatalf("expected 2 synthetic results, got %d", got)
	}
	if f := events.finished[sub]; f.status != runstore.FileStatusSkipped || f.note != "all engines skipped" {
		t.Fatalf("unexpected terminal state: %+v", f)
	}
}

func TestProcessRunCancelAllAtFilesFound(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithEngines(syncEngines("goodsync")...),
		testsupport.WithMaxConcurrency(1))
	media := testsupport.MediaDir(cfg)
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("file%d", i)
		testsupport.WriteSubtitle(t, filepath.Join(media, name+".srt"))
		testsupport.TouchVideo(t, filepath.Join(media, name+".mkv"))
	}

	events := newRecordingEvents()
	proc := processor.New(cfg, &fakeTracker{}, scriptedRunner(cfg.Scan.OutputMarker), events, nil)
	events.onFilesFound = func([]processor.File) { proc.CancelAll() }

	if err := proc.ProcessRun(context.Background()); err != nil {
		t.Fatalf("process run failed: %v", err)
	}

	if len(events.engineStarts) != 0 {
		t.Fatalf("expected no engine starts after stop, got %v", events.engineStarts)
	}
	if len(events.finished) != 5 {
		t.Fatalf("expected 5 terminal files, got %d", len(events.finished))
	}
	for path, f := range events.finished {
		if f.status != runstore.FileStatusSkipped || f.note != "cancelled" {
			t.Fatalf("expected %s skipped as cancelled, got %+v", path, f)
		}
	}
}

func TestProcessRunCancelMidLoopFinishesInFlightEngine(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithEngines(syncEngines("goodsync", "badsync")...),
		testsupport.WithMaxConcurrency(1))
	media := testsupport.MediaDir(cfg)
	testsupport.WriteSubtitle(t, filepath.Join(media, "first.srt"))
	testsupport.TouchVideo(t, filepath.Join(media, "first.mkv"))
	testsupport.WriteSubtitle(t, filepath.Join(media, "second.srt"))
	testsupport.TouchVideo(t, filepath.Join(media, "second.mkv"))

	events := newRecordingEvents()
	var proc *processor.Processor
	runner := engine.NewRunner(cfg.Scan.OutputMarker)
	runner.WithCommandRunner(func(ctx context.Context, name string, args ...string) (string, string, error) {
		proc.CancelAll()
		return "done", "", nil
	})
	proc = processor.New(cfg, &fakeTracker{}, runner, events, nil)

	if err := proc.ProcessRun(context.Background()); err != nil {
		t.Fatalf("process run failed: %v", err)
	}

	if got := events.totalEngineResults(); got != 1 {
		t.Fatalf("expected the in-flight engine to finish alone, got %d results", got)
	}
	for path, f := range events.finished {
		if f.status != runstore.FileStatusSkipped || f.note != "cancelled" {
			t.Fatalf("expected %s skipped as cancelled, got %+v", path, f)
		}
	}
}

func TestProcessRunBatchWidthBound(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithEngines(syncEngines("goodsync")...),
		testsupport.WithMaxConcurrency(2))
	media := testsupport.MediaDir(cfg)
	for i := 0; i < 4; i++ {
		name := fmt.Sprintf("file%d", i)
		testsupport.WriteSubtitle(t, filepath.Join(media, name+".srt"))
		testsupport.TouchVideo(t, filepath.Join(media, name+".mkv"))
	}

	var current, peak atomic.Int32
	runner := engine.NewRunner(cfg.Scan.OutputMarker)
	runner.WithCommandRunner(func(ctx context.Context, name string, args ...string) (string, string, error) {
		now := current.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return "", "", nil
	})

	events := newRecordingEvents()
	proc := processor.New(cfg, &fakeTracker{}, runner, events, nil)
	if err := proc.ProcessRun(context.Background()); err != nil {
		t.Fatalf("process run failed: %v", err)
	}

	if got := peak.Load(); got > 2 {
		t.Fatalf("batch width exceeded: %d concurrent engines", got)
	}
	if got := events.totalEngineResults(); got != 4 {
		t.Fatalf("expected 4 engine results, got %d", got)
	}
}

func TestProcessRunAlreadyProcessedOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEngines(syncEngines("goodsync")...))
	media := testsupport.MediaDir(cfg)
	sub := testsupport.WriteSubtitle(t, filepath.Join(media, "movie.srt"))
	testsupport.TouchVideo(t, filepath.Join(media, "movie.mkv"))
	testsupport.WriteSubtitle(t, filepath.Join(media, "movie.goodsync.synced.srt"))

	events := newRecordingEvents()
	// Default runner: the command would fail if it were ever spawned.
	proc := processor.New(cfg, &fakeTracker{}, nil, events, nil)
	if err := proc.ProcessRun(context.Background()); err != nil {
		t.Fatalf("process run failed: %v", err)
	}

	if len(events.files) != 1 {
		t.Fatalf("expected the existing output to stay invisible to the scan, got %v", events.files)
	}
	results := events.engineResults[sub+"|goodsync"]
	if len(results) != 1 || !results[0].Success || !results[0].Skipped {
		t.Fatalf("expected already-processed result, got %+v", results)
	}
	if f := events.finished[sub]; f.status != runstore.FileStatusCompleted {
		t.Fatalf("expected completion, got %+v", f)
	}
}

func TestProcessRunFilesFoundErrorAborts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEngines(syncEngines("goodsync")...))
	media := testsupport.MediaDir(cfg)
	testsupport.WriteSubtitle(t, filepath.Join(media, "movie.srt"))
	testsupport.TouchVideo(t, filepath.Join(media, "movie.mkv"))

	events := newRecordingEvents()
	events.filesFoundErr = fmt.Errorf("allocation refused")
	proc := processor.New(cfg, &fakeTracker{}, scriptedRunner(cfg.Scan.OutputMarker), events, nil)

	err := proc.ProcessRun(context.Background())
	if err == nil || !strings.Contains(err.Error(), "allocation refused") {
		t.Fatalf("expected allocation error, got %v", err)
	}
	if len(events.started) != 0 {
		t.Fatalf("expected no files started, got %v", events.started)
	}
}

func TestProcessRunScanFailureAborts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEngines(syncEngines("goodsync")...))
	cfg.Paths.MediaDirs = []string{filepath.Join(testsupport.BaseDir(cfg), "does-not-exist")}

	events := newRecordingEvents()
	proc := processor.New(cfg, &fakeTracker{}, scriptedRunner(cfg.Scan.OutputMarker), events, nil)

	if err := proc.ProcessRun(context.Background()); err == nil {
		t.Fatal("expected scan failure")
	}
	if events.files != nil {
		t.Fatalf("expected FilesFound to never fire, got %v", events.files)
	}
}

func TestProcessRunRecentLogAndReset(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEngines(syncEngines("goodsync")...))
	media := testsupport.MediaDir(cfg)
	testsupport.WriteSubtitle(t, filepath.Join(media, "movie.srt"))
	testsupport.TouchVideo(t, filepath.Join(media, "movie.mkv"))

	events := newRecordingEvents()
	proc := processor.New(cfg, &fakeTracker{}, scriptedRunner(cfg.Scan.OutputMarker), events, nil)
	if err := proc.ProcessRun(context.Background()); err != nil {
		t.Fatalf("process run failed: %v", err)
	}

	recent := proc.RecentLog(0)
	if len(recent) == 0 || len(recent) != len(events.logs) {
		t.Fatalf("expected recent log to mirror emitted lines: %d vs %d", len(recent), len(events.logs))
	}
	proc.Reset()
	if lines := proc.RecentLog(0); len(lines) != 0 {
		t.Fatalf("expected reset to clear recent log, got %v", lines)
	}
}
