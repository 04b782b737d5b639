// Package processor drives one synchronization run: scan the media
// roots, pair subtitles with videos, and walk every file through the
// engine loop to a terminal state. Lifecycle events go to an Events
// implementation owned by the caller; the processor itself never writes
// run state.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"subcue/internal/config"
	"subcue/internal/engine"
	"subcue/internal/logging"
	"subcue/internal/match"
	"subcue/internal/runstore"
	"subcue/internal/scan"
	"subcue/internal/services"
)

const (
	noteNoVideo       = "no matching video found"
	noteCancelled     = "cancelled"
	noteAllSkipped    = "all engines skipped"
	noteAllFailed     = "all engines failed"
	noteNoEngines     = "no engines enabled"
	skipResultMessage = "skipped: repeated failures"

	recentLogCapacity = 200
	durationRound     = 10 * time.Millisecond
)

// File is one scanned subtitle with its resolved video. VideoPath is
// empty when no match was found.
type File struct {
	Path      string
	VideoPath string
	Language  string
}

// Events receives run lifecycle callbacks, synchronously and in order.
// FilesFound may fail run allocation, which aborts the run before any
// file is touched; the remaining callbacks carry no verdict back.
type Events interface {
	FilesFound(ctx context.Context, files []File) error
	FileStarted(ctx context.Context, file File)
	EngineStarted(ctx context.Context, path, engineName string)
	EngineCompleted(ctx context.Context, path, engineName string, result engine.Result)
	FileFinished(ctx context.Context, path string, status runstore.FileStatus, note string)
	Log(ctx context.Context, line string)
}

// SkipTracker answers whether an engine is currently latched off for a
// file. Backed by the store's failure tracker.
type SkipTracker interface {
	ShouldSkip(ctx context.Context, file, engineName string) (bool, error)
}

// Processor executes runs. Safe for concurrent CancelFile/CancelAll
// alongside one ProcessRun.
type Processor struct {
	cfg     *config.Config
	tracker SkipTracker
	runner  *engine.Runner
	events  Events
	logger  *slog.Logger

	mu        sync.Mutex
	cancelled map[string]struct{}
	known     []string

	recent *logRing
}

// New constructs a Processor. A nil runner gets built from the config's
// output marker; a nil logger is replaced with a nop logger.
func New(cfg *config.Config, tracker SkipTracker, runner *engine.Runner, events Events, logger *slog.Logger) *Processor {
	if runner == nil {
		runner = engine.NewRunner(cfg.Scan.OutputMarker)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if events == nil {
		events = noopEvents{}
	}
	return &Processor{
		cfg:       cfg,
		tracker:   tracker,
		runner:    runner,
		events:    events,
		logger:    logging.NewComponentLogger(logger, "processor"),
		cancelled: make(map[string]struct{}),
		recent:    newLogRing(recentLogCapacity),
	}
}

// Reset clears the cancelled set, the known-file list, and the recent
// log buffer. The Coordinator calls it before launching a run.
func (p *Processor) Reset() {
	p.mu.Lock()
	p.cancelled = make(map[string]struct{})
	p.known = nil
	p.mu.Unlock()
	p.recent.Clear()
}

// CancelFile marks one path so the engine loop skips it at the next
// checkpoint. In-flight engine invocations are never interrupted.
func (p *Processor) CancelFile(path string) {
	if path == "" {
		return
	}
	p.mu.Lock()
	p.cancelled[path] = struct{}{}
	p.mu.Unlock()
}

// CancelAll cancels every file known to the current run.
func (p *Processor) CancelAll() {
	p.mu.Lock()
	for _, path := range p.known {
		p.cancelled[path] = struct{}{}
	}
	p.mu.Unlock()
}

// RecentLog returns up to limit recent log lines, oldest first.
func (p *Processor) RecentLog(limit int) []string {
	return p.recent.Lines(limit)
}

// ProcessRun scans, matches, and processes every file to a terminal
// state. The returned error covers only failures before the run exists
// (scan or allocation); per-file trouble is recorded, not returned.
// ctx should be the daemon context: shutdown interrupts engines, run
// cancellation does not.
func (p *Processor) ProcessRun(ctx context.Context) error {
	result, err := scan.Run(ctx, scan.Options{
		Roots:           p.cfg.Paths.MediaDirs,
		ExcludeDirs:     p.cfg.Paths.ExcludeDirs,
		Extensions:      p.cfg.Scan.SubtitleExtensions,
		OutputMarker:    p.cfg.Scan.OutputMarker,
		WalkConcurrency: p.cfg.Scan.WalkConcurrency,
	})
	if err != nil {
		return err
	}

	matcher, err := match.NewMatcher(0)
	if err != nil {
		return err
	}
	files := make([]File, 0, len(result.Subtitles))
	for _, subtitle := range result.Subtitles {
		m, err := matcher.Find(subtitle)
		if err != nil {
			p.logger.Warn("video match failed",
				logging.String(logging.FieldFile, subtitle), logging.Error(err))
		}
		files = append(files, File{Path: subtitle, VideoPath: m.Video, Language: m.Language})
	}

	p.mu.Lock()
	p.known = make([]string, len(files))
	for i, f := range files {
		p.known[i] = f.Path
	}
	p.mu.Unlock()

	p.log(ctx, fmt.Sprintf("scan complete: %d candidate files (%d files examined)", len(files), result.FilesScanned))

	if err := p.events.FilesFound(ctx, files); err != nil {
		return err
	}

	engines := p.cfg.EnabledEngines()
	width := p.cfg.Sync.MaxConcurrency
	if width <= 0 {
		width = 1
	}
	for start := 0; start < len(files); start += width {
		end := start + width
		if end > len(files) {
			end = len(files)
		}
		var wg sync.WaitGroup
		for _, file := range files[start:end] {
			wg.Add(1)
			go func(f File) {
				defer wg.Done()
				p.processFile(ctx, f, engines)
			}(file)
		}
		wg.Wait()
	}

	p.log(ctx, fmt.Sprintf("run finished: %d files", len(files)))
	return nil
}

// processFile walks one file through the engine loop to a terminal
// state. Cancellation is checked on entry and before each engine, never
// mid-invocation.
func (p *Processor) processFile(ctx context.Context, file File, engines []config.Engine) {
	ctx = services.WithFilePath(ctx, file.Path)

	if p.isCancelled(file.Path) || ctx.Err() != nil {
		p.finishFile(ctx, file.Path, runstore.FileStatusSkipped, noteCancelled)
		return
	}

	p.events.FileStarted(ctx, file)

	if file.VideoPath == "" {
		p.log(ctx, fmt.Sprintf("%s: %s", file.Path, noteNoVideo))
		p.finishFile(ctx, file.Path, runstore.FileStatusError, noteNoVideo)
		return
	}
	if len(engines) == 0 {
		p.finishFile(ctx, file.Path, runstore.FileStatusError, noteNoEngines)
		return
	}

	anySucceeded := false
	allTrackerSkipped := true
	for _, eng := range engines {
		if p.isCancelled(file.Path) || ctx.Err() != nil {
			p.finishFile(ctx, file.Path, runstore.FileStatusSkipped, noteCancelled)
			return
		}

		engCtx := services.WithEngine(ctx, eng.Name)
		if skip, err := p.tracker.ShouldSkip(engCtx, file.Path, eng.Name); err != nil {
			logging.WithContext(engCtx, p.logger).Warn("skip lookup failed", logging.Error(err))
		} else if skip {
			p.log(engCtx, fmt.Sprintf("%s: engine %s %s", file.Path, eng.Name, skipResultMessage))
			p.events.EngineCompleted(engCtx, file.Path, eng.Name, engine.Result{
				Skipped: true,
				Message: skipResultMessage,
			})
			continue
		}
		allTrackerSkipped = false

		// Each invocation gets its own correlation ID so its log lines
		// can be grepped together across the daemon and stream sinks.
		invokeCtx := services.WithRequestID(engCtx, uuid.NewString())
		p.events.EngineStarted(invokeCtx, file.Path, eng.Name)
		result := p.runner.Run(invokeCtx, eng, file.Path, file.VideoPath)
		p.events.EngineCompleted(invokeCtx, file.Path, eng.Name, result)
		p.logEngineResult(invokeCtx, file.Path, eng.Name, result)
		if result.Success {
			anySucceeded = true
		}
	}

	switch {
	case anySucceeded:
		p.finishFile(ctx, file.Path, runstore.FileStatusCompleted, "")
	case allTrackerSkipped:
		p.finishFile(ctx, file.Path, runstore.FileStatusSkipped, noteAllSkipped)
	default:
		p.finishFile(ctx, file.Path, runstore.FileStatusError, noteAllFailed)
	}
}

func (p *Processor) finishFile(ctx context.Context, path string, status runstore.FileStatus, note string) {
	line := fmt.Sprintf("%s: %s", path, status)
	if note != "" {
		line += " (" + note + ")"
	}
	p.log(ctx, line)
	p.events.FileFinished(ctx, path, status, note)
}

func (p *Processor) logEngineResult(ctx context.Context, path, engineName string, result engine.Result) {
	var line string
	switch {
	case result.Success && result.Skipped:
		line = fmt.Sprintf("%s: engine %s skipped (%s)", path, engineName, result.Message)
	case result.Success:
		line = fmt.Sprintf("%s: engine %s succeeded in %s", path, engineName, result.Duration.Round(durationRound))
	default:
		line = fmt.Sprintf("%s: engine %s failed: %s", path, engineName, result.Message)
	}
	p.log(ctx, line)
}

func (p *Processor) isCancelled(path string) bool {
	p.mu.Lock()
	_, ok := p.cancelled[path]
	p.mu.Unlock()
	return ok
}

// log fans a run log line out to the recent buffer, the Events owner
// (for persistence), and the structured logger. File, engine, and
// correlation attributes ride in on the context.
func (p *Processor) log(ctx context.Context, line string) {
	p.recent.Append(line)
	p.events.Log(ctx, line)
	logging.WithContext(ctx, p.logger).LogAttrs(ctx, slog.LevelInfo, line)
}

type noopEvents struct{}

func (noopEvents) FilesFound(context.Context, []File) error                          { return nil }
func (noopEvents) FileStarted(context.Context, File)                                 {}
func (noopEvents) EngineStarted(context.Context, string, string)                     {}
func (noopEvents) EngineCompleted(context.Context, string, string, engine.Result)    {}
func (noopEvents) FileFinished(context.Context, string, runstore.FileStatus, string) {}
func (noopEvents) Log(context.Context, string)                                       {}
