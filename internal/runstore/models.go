package runstore

import (
	"fmt"
	"strings"
	"time"
)

// RunStatus describes the lifecycle state of a synchronization run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
)

var allRunStatuses = []RunStatus{
	RunStatusRunning,
	RunStatusCompleted,
	RunStatusCancelled,
}

var runStatusSet = func() map[RunStatus]struct{} {
	set := make(map[RunStatus]struct{}, len(allRunStatuses))
	for _, status := range allRunStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseRunStatus converts raw text into a RunStatus.
func ParseRunStatus(raw string) (RunStatus, error) {
	candidate := RunStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := runStatusSet[candidate]; ok {
		return candidate, nil
	}
	return "", fmt.Errorf("unknown run status %q", raw)
}

// Terminal reports whether the status ends a run.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusCancelled
}

// FileStatus describes the per-file state machine.
type FileStatus string

const (
	FileStatusPending    FileStatus = "pending"
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusSkipped    FileStatus = "skipped"
	FileStatusError      FileStatus = "error"
)

var allFileStatuses = []FileStatus{
	FileStatusPending,
	FileStatusProcessing,
	FileStatusCompleted,
	FileStatusSkipped,
	FileStatusError,
}

var fileStatusSet = func() map[FileStatus]struct{} {
	set := make(map[FileStatus]struct{}, len(allFileStatuses))
	for _, status := range allFileStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseFileStatus converts raw text into a FileStatus.
func ParseFileStatus(raw string) (FileStatus, error) {
	candidate := FileStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := fileStatusSet[candidate]; ok {
		return candidate, nil
	}
	return "", fmt.Errorf("unknown file status %q", raw)
}

// Terminal reports whether the status ends a file's processing.
func (s FileStatus) Terminal() bool {
	switch s {
	case FileStatusCompleted, FileStatusSkipped, FileStatusError:
		return true
	default:
		return false
	}
}

// Run is one scan-and-synchronize pass over the media libraries.
type Run struct {
	ID               string
	StartTime        time.Time
	EndTime          *time.Time
	TotalFiles       int
	CompletedFiles   int
	SkippedFiles     int
	FailedFiles      int
	TotalEngines     int
	CompletedEngines int
	Status           RunStatus
	Log              string
	UpdatedAt        time.Time
}

// Duration returns the wall-clock span of the run, using the current
// time for runs that have not finished yet.
func (r *Run) Duration() time.Duration {
	if r == nil || r.StartTime.IsZero() {
		return 0
	}
	end := time.Now()
	if r.EndTime != nil {
		end = *r.EndTime
	}
	if end.Before(r.StartTime) {
		return 0
	}
	return end.Sub(r.StartTime)
}

// EngineResult is the recorded outcome of one engine against one
// subtitle file. Duration is stored in milliseconds.
type EngineResult struct {
	Success    bool   `json:"success"`
	Skipped    bool   `json:"skipped,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Message    string `json:"message,omitempty"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
}

// FileResult tracks one subtitle file inside a run. Language is the
// ISO 639-1 code detected from the subtitle filename, empty when the
// name carries no recognizable tag.
type FileResult struct {
	ID            int64
	RunID         string
	Path          string
	VideoPath     string
	Language      string
	Status        FileStatus
	CurrentEngine string
	Engines       map[string]EngineResult
	Note          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FileSeed seeds a pending FileResult when a run is populated.
type FileSeed struct {
	Path      string
	VideoPath string
	Language  string
}

// FailureRecord is the persistent failure history for one (file,
// engine) pair. Records survive run deletion so skip decisions keep
// their memory across sweeps.
type FailureRecord struct {
	File                string
	Engine              string
	ConsecutiveFailures int
	LastFailureAt       *time.Time
	LastSuccessAt       *time.Time
	IsSkipped           bool
	UpdatedAt           time.Time
}

// SweepPolicy controls the retention sweep. A zero KeepDays disables
// deletion and a zero TrimDays disables log trimming.
type SweepPolicy struct {
	KeepDays    int
	TrimDays    int
	MaxLogBytes int64
}

// SweepResult summarizes one retention sweep.
type SweepResult struct {
	RunsDeleted  int64
	RunsTrimmed  int64
	BytesTrimmed int64
}

// DatabaseHealth captures the result of a store health probe.
type DatabaseHealth struct {
	Path           string
	SizeBytes      int64
	TotalRuns      int64
	TotalFiles     int64
	IntegrityOK    bool
	SchemaOK       bool
	MissingColumns []string
	CheckedAt      time.Time
}

// HealthSummary renders a short human-readable health line.
func (h DatabaseHealth) HealthSummary() string {
	if h.IntegrityOK && h.SchemaOK {
		return fmt.Sprintf("ok (%d runs, %d files)", h.TotalRuns, h.TotalFiles)
	}
	problems := make([]string, 0, 2)
	if !h.IntegrityOK {
		problems = append(problems, "integrity check failed")
	}
	if !h.SchemaOK {
		problems = append(problems, fmt.Sprintf("schema mismatch (missing: %s)", strings.Join(h.MissingColumns, ", ")))
	}
	return strings.Join(problems, "; ")
}
