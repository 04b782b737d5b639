package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Run describes a synchronization run in a transport-friendly format.
type Run struct {
	ID               string  `json:"id"`
	Status           string  `json:"status"`
	StartTime        string  `json:"startTime,omitempty"`
	EndTime          string  `json:"endTime,omitempty"`
	DurationSeconds  float64 `json:"durationSeconds"`
	TotalFiles       int     `json:"totalFiles"`
	CompletedFiles   int     `json:"completedFiles"`
	SkippedFiles     int     `json:"skippedFiles"`
	FailedFiles      int     `json:"failedFiles"`
	TotalEngines     int     `json:"totalEngines"`
	CompletedEngines int     `json:"completedEngines"`
	UpdatedAt        string  `json:"updatedAt,omitempty"`
}

// EngineResult is one engine's recorded outcome for a file, with the
// engine name attached so collections order deterministically.
type EngineResult struct {
	Name       string `json:"name"`
	Success    bool   `json:"success"`
	Skipped    bool   `json:"skipped,omitempty"`
	DurationMS int64  `json:"durationMs"`
	Message    string `json:"message,omitempty"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
}

// FileResult describes one subtitle file inside a run. Language is the
// ISO 639-1 code detected from the filename, when present.
type FileResult struct {
	Path          string         `json:"path"`
	VideoPath     string         `json:"videoPath,omitempty"`
	Language      string         `json:"language,omitempty"`
	Status        string         `json:"status"`
	CurrentEngine string         `json:"currentEngine,omitempty"`
	Engines       []EngineResult `json:"engines,omitempty"`
	Note          string         `json:"note,omitempty"`
	CreatedAt     string         `json:"createdAt,omitempty"`
	UpdatedAt     string         `json:"updatedAt,omitempty"`
}

// Failure is the persistent failure history for one (file, engine) pair.
type Failure struct {
	File                string `json:"file"`
	Engine              string `json:"engine"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
	LastFailureAt       string `json:"lastFailureAt,omitempty"`
	LastSuccessAt       string `json:"lastSuccessAt,omitempty"`
	Skipped             bool   `json:"skipped"`
	UpdatedAt           string `json:"updatedAt,omitempty"`
}

// EngineStatus captures availability of one configured engine binary.
type EngineStatus struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Enabled   bool   `json:"enabled"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// CoordinatorStatus summarizes run execution state.
type CoordinatorStatus struct {
	Running   bool     `json:"running"`
	ActiveRun *Run     `json:"activeRun,omitempty"`
	LastRun   *Run     `json:"lastRun,omitempty"`
	RecentLog []string `json:"recentLog,omitempty"`
}

// StoreHealth reports the state store's on-disk health.
type StoreHealth struct {
	Path           string   `json:"path"`
	SizeBytes      int64    `json:"sizeBytes"`
	TotalRuns      int64    `json:"totalRuns"`
	TotalFiles     int64    `json:"totalFiles"`
	IntegrityOK    bool     `json:"integrityOk"`
	SchemaOK       bool     `json:"schemaOk"`
	MissingColumns []string `json:"missingColumns,omitempty"`
	CheckedAt      string   `json:"checkedAt,omitempty"`
	Summary        string   `json:"summary,omitempty"`
}

// SweepOutcome reports what one retention sweep removed.
type SweepOutcome struct {
	RunsDeleted  int64 `json:"runsDeleted"`
	RunsTrimmed  int64 `json:"runsTrimmed"`
	BytesTrimmed int64 `json:"bytesTrimmed"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool              `json:"running"`
	PID          int               `json:"pid"`
	DatabasePath string            `json:"databasePath"`
	LockFilePath string            `json:"lockFilePath"`
	SocketPath   string            `json:"socketPath,omitempty"`
	LogPath      string            `json:"logPath,omitempty"`
	Coordinator  CoordinatorStatus `json:"coordinator"`
	Engines      []EngineStatus    `json:"engines"`
	Store        *StoreHealth      `json:"store,omitempty"`
}

// StatusLine is one labeled row of status output. Severity is one of
// "ok", "warn", "error", or "info".
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail,omitempty"`
}

// EngineSummary aggregates configured engine readiness.
type EngineSummary struct {
	Total     int    `json:"total"`
	Enabled   int    `json:"enabled"`
	Available int    `json:"available"`
	Severity  string `json:"severity"`
	Detail    string `json:"detail"`
}
