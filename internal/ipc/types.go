package ipc

import (
	"subcue/internal/api"
	"subcue/internal/logging"
)

// PingRequest probes daemon liveness.
type PingRequest struct{}

// PingResponse reports the daemon process id.
type PingResponse struct {
	PID int `json:"pid"`
}

// StatusRequest fetches the daemon status snapshot.
type StatusRequest struct{}

// DaemonStatus mirrors the wire status DTO for IPC callers.
type DaemonStatus = api.DaemonStatus

// StatusResponse carries the combined daemon and coordinator status.
type StatusResponse struct {
	Status DaemonStatus `json:"status"`
}

// RunStartRequest launches a new synchronization run.
type RunStartRequest struct{}

// RunStartResponse returns the created run.
type RunStartResponse struct {
	Run api.Run `json:"run"`
}

// RunStopRequest cancels the active run.
type RunStopRequest struct{}

// RunStopResponse indicates whether a run was stopped. Stopped is
// false when no run was in flight.
type RunStopResponse struct {
	Stopped bool `json:"stopped"`
}

// SkipFileRequest cancels one file within the active run.
type SkipFileRequest struct {
	Path string `json:"path"`
}

// SkipFileResponse indicates the skip was accepted.
type SkipFileResponse struct {
	Skipped bool `json:"skipped"`
}

// RunHistoryRequest lists recent runs. A limit of zero or less returns
// the whole history.
type RunHistoryRequest struct {
	Limit int `json:"limit"`
}

// RunHistoryResponse carries run summaries newest first.
type RunHistoryResponse struct {
	Runs []api.Run `json:"runs"`
}

// RunShowRequest fetches one run with its file results.
type RunShowRequest struct {
	RunID string `json:"run_id"`
}

// RunShowResponse carries the run and its per-file outcomes.
type RunShowResponse struct {
	Run   api.Run          `json:"run"`
	Files []api.FileResult `json:"files"`
}

// RunLogRequest fetches persisted run log lines, optionally limited to
// the final TailLines lines.
type RunLogRequest struct {
	RunID     string `json:"run_id"`
	TailLines int    `json:"tail_lines"`
}

// RunLogResponse returns the stored run log lines.
type RunLogResponse struct {
	Lines []string `json:"lines"`
}

// LogTailRequest fetches live daemon log events past a sequence number.
// Follow blocks up to WaitMillis for new events. TailLines, when set on
// a non-follow request with Since zero, returns the newest events
// instead of the oldest buffered ones.
type LogTailRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	TailLines  int    `json:"tail_lines,omitempty"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
}

// LogTailResponse returns log events and the cursor to resume from.
type LogTailResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

// FailuresListRequest lists engine failure records.
type FailuresListRequest struct {
	OnlySkipped bool `json:"only_skipped"`
}

// FailuresListResponse carries failure tracker records.
type FailuresListResponse struct {
	Failures []api.Failure `json:"failures"`
}

// FailuresResetRequest clears failure streaks for a file, or only the
// named (file, engine) pair when Engine is set.
type FailuresResetRequest struct {
	File   string `json:"file"`
	Engine string `json:"engine"`
}

// FailuresResetResponse reports how many records were cleared.
type FailuresResetResponse struct {
	Cleared int64 `json:"cleared"`
}

// StoreHealthRequest fetches detailed database diagnostics.
type StoreHealthRequest struct{}

// StoreHealthResponse reports database health information.
type StoreHealthResponse struct {
	Health api.StoreHealth `json:"health"`
}

// SweepRequest applies the retention policy once.
type SweepRequest struct{}

// SweepResponse summarizes the sweep.
type SweepResponse struct {
	Outcome api.SweepOutcome `json:"outcome"`
}

// VacuumRequest compacts the database file.
type VacuumRequest struct{}

// VacuumResponse reports the database size before and after compaction.
type VacuumResponse struct {
	SizeBefore int64 `json:"size_before"`
	SizeAfter  int64 `json:"size_after"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges the shutdown request.
type ShutdownResponse struct {
	Stopping bool `json:"stopping"`
}
