package api

import (
	"sort"
	"time"

	"subcue/internal/runstore"
)

// FromRun converts a run record to its API representation.
func FromRun(run *runstore.Run) Run {
	if run == nil {
		return Run{}
	}
	dto := Run{
		ID:               run.ID,
		Status:           string(run.Status),
		DurationSeconds:  run.Duration().Seconds(),
		TotalFiles:       run.TotalFiles,
		CompletedFiles:   run.CompletedFiles,
		SkippedFiles:     run.SkippedFiles,
		FailedFiles:      run.FailedFiles,
		TotalEngines:     run.TotalEngines,
		CompletedEngines: run.CompletedEngines,
	}
	if !run.StartTime.IsZero() {
		dto.StartTime = FormatTime(run.StartTime)
	}
	if run.EndTime != nil && !run.EndTime.IsZero() {
		dto.EndTime = FormatTime(*run.EndTime)
	}
	if !run.UpdatedAt.IsZero() {
		dto.UpdatedAt = FormatTime(run.UpdatedAt)
	}
	return dto
}

// FromRuns converts a slice of run records into API DTOs.
func FromRuns(runs []*runstore.Run) []Run {
	if len(runs) == 0 {
		return nil
	}
	out := make([]Run, 0, len(runs))
	for _, run := range runs {
		out = append(out, FromRun(run))
	}
	return out
}

// FromFileResult converts a file record to its API representation. The
// engine map flattens into a name-sorted slice.
func FromFileResult(file *runstore.FileResult) FileResult {
	if file == nil {
		return FileResult{}
	}
	dto := FileResult{
		Path:          file.Path,
		VideoPath:     file.VideoPath,
		Language:      file.Language,
		Status:        string(file.Status),
		CurrentEngine: file.CurrentEngine,
		Note:          file.Note,
	}
	if !file.CreatedAt.IsZero() {
		dto.CreatedAt = FormatTime(file.CreatedAt)
	}
	if !file.UpdatedAt.IsZero() {
		dto.UpdatedAt = FormatTime(file.UpdatedAt)
	}
	if len(file.Engines) > 0 {
		names := make([]string, 0, len(file.Engines))
		for name := range file.Engines {
			names = append(names, name)
		}
		sort.Strings(names)
		dto.Engines = make([]EngineResult, 0, len(names))
		for _, name := range names {
			result := file.Engines[name]
			dto.Engines = append(dto.Engines, EngineResult{
				Name:       name,
				Success:    result.Success,
				Skipped:    result.Skipped,
				DurationMS: result.DurationMS,
				Message:    result.Message,
				Stdout:     result.Stdout,
				Stderr:     result.Stderr,
			})
		}
	}
	return dto
}

// FromFileResults converts a slice of file records into API DTOs.
func FromFileResults(files []*runstore.FileResult) []FileResult {
	if len(files) == 0 {
		return nil
	}
	out := make([]FileResult, 0, len(files))
	for _, file := range files {
		out = append(out, FromFileResult(file))
	}
	return out
}

// FromFailure converts a failure record to its API representation.
func FromFailure(record *runstore.FailureRecord) Failure {
	if record == nil {
		return Failure{}
	}
	dto := Failure{
		File:                record.File,
		Engine:              record.Engine,
		ConsecutiveFailures: record.ConsecutiveFailures,
		Skipped:             record.IsSkipped,
	}
	if record.LastFailureAt != nil {
		dto.LastFailureAt = FormatTime(*record.LastFailureAt)
	}
	if record.LastSuccessAt != nil {
		dto.LastSuccessAt = FormatTime(*record.LastSuccessAt)
	}
	if !record.UpdatedAt.IsZero() {
		dto.UpdatedAt = FormatTime(record.UpdatedAt)
	}
	return dto
}

// FromFailures converts a slice of failure records into API DTOs.
func FromFailures(records []*runstore.FailureRecord) []Failure {
	if len(records) == 0 {
		return nil
	}
	out := make([]Failure, 0, len(records))
	for _, record := range records {
		out = append(out, FromFailure(record))
	}
	return out
}

// FromHealth converts a store health probe to its API representation.
func FromHealth(health runstore.DatabaseHealth) StoreHealth {
	dto := StoreHealth{
		Path:           health.Path,
		SizeBytes:      health.SizeBytes,
		TotalRuns:      health.TotalRuns,
		TotalFiles:     health.TotalFiles,
		IntegrityOK:    health.IntegrityOK,
		SchemaOK:       health.SchemaOK,
		MissingColumns: health.MissingColumns,
		Summary:        health.HealthSummary(),
	}
	if !health.CheckedAt.IsZero() {
		dto.CheckedAt = FormatTime(health.CheckedAt)
	}
	return dto
}

// FromSweepResult converts a sweep summary to its API representation.
func FromSweepResult(result runstore.SweepResult) SweepOutcome {
	return SweepOutcome{
		RunsDeleted:  result.RunsDeleted,
		RunsTrimmed:  result.RunsTrimmed,
		BytesTrimmed: result.BytesTrimmed,
	}
}

// FormatTime renders a timestamp in the API date-time format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime parses a timestamp previously rendered by FormatTime. The
// zero time comes back for empty or malformed input.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
