package api

import (
	"testing"
	"time"

	"subcue/internal/runstore"
)

func TestFromRunMapsCountersAndTimes(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	end := start.Add(90 * time.Second)
	run := &runstore.Run{
		ID:               "run-1",
		StartTime:        start,
		EndTime:          &end,
		TotalFiles:       4,
		CompletedFiles:   2,
		SkippedFiles:     1,
		FailedFiles:      1,
		TotalEngines:     6,
		CompletedEngines: 5,
		Status:           runstore.RunStatusCompleted,
		UpdatedAt:        end,
	}
	dto := FromRun(run)
	if dto.ID != "run-1" || dto.Status != "completed" {
		t.Fatalf("unexpected identity fields: %+v", dto)
	}
	if dto.StartTime != "2026-03-14T09:26:53.000Z" {
		t.Fatalf("unexpected start time: %s", dto.StartTime)
	}
	if dto.EndTime != "2026-03-14T09:28:23.000Z" {
		t.Fatalf("unexpected end time: %s", dto.EndTime)
	}
	if dto.DurationSeconds != 90 {
		t.Fatalf("expected 90s duration, got %v", dto.DurationSeconds)
	}
	if dto.TotalFiles != 4 || dto.CompletedFiles != 2 || dto.SkippedFiles != 1 || dto.FailedFiles != 1 {
		t.Fatalf("unexpected file counters: %+v", dto)
	}
	if dto.TotalEngines != 6 || dto.CompletedEngines != 5 {
		t.Fatalf("unexpected engine counters: %+v", dto)
	}
}

func TestFromRunNilAndZero(t *testing.T) {
	if dto := FromRun(nil); dto.ID != "" || dto.StartTime != "" {
		t.Fatalf("expected zero DTO for nil run, got %+v", dto)
	}
	dto := FromRun(&runstore.Run{ID: "bare", Status: runstore.RunStatusRunning})
	if dto.StartTime != "" || dto.EndTime != "" || dto.UpdatedAt != "" {
		t.Fatalf("zero times must stay empty, got %+v", dto)
	}
}

func TestFromFileResultOrdersEngines(t *testing.T) {
	file := &runstore.FileResult{
		Path:      "/media/show.srt",
		VideoPath: "/media/show.mkv",
		Language:  "en",
		Status:    runstore.FileStatusCompleted,
		Engines: map[string]runstore.EngineResult{
			"ffsubsync":   {Success: true, DurationMS: 1200},
			"autosubsync": {Success: false, Message: "no sync points"},
		},
		CreatedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	dto := FromFileResult(file)
	if len(dto.Engines) != 2 {
		t.Fatalf("expected 2 engine results, got %d", len(dto.Engines))
	}
	if dto.Engines[0].Name != "autosubsync" || dto.Engines[1].Name != "ffsubsync" {
		t.Fatalf("expected name-sorted engines, got %+v", dto.Engines)
	}
	if !dto.Engines[1].Success || dto.Engines[1].DurationMS != 1200 {
		t.Fatalf("expected ffsubsync result carried over, got %+v", dto.Engines[1])
	}
	if dto.Engines[0].Message != "no sync points" {
		t.Fatalf("expected failure message carried over, got %+v", dto.Engines[0])
	}
	if dto.Status != "completed" || dto.CreatedAt == "" {
		t.Fatalf("unexpected file fields: %+v", dto)
	}
	if dto.Language != "en" {
		t.Fatalf("expected language carried over, got %q", dto.Language)
	}
}

func TestFromFailureMapsTimestamps(t *testing.T) {
	failedAt := time.Date(2026, 3, 13, 22, 10, 0, 0, time.UTC)
	record := &runstore.FailureRecord{
		File:                "/media/show.srt",
		Engine:              "ffsubsync",
		ConsecutiveFailures: 3,
		LastFailureAt:       &failedAt,
		IsSkipped:           true,
	}
	dto := FromFailure(record)
	if dto.ConsecutiveFailures != 3 || !dto.Skipped {
		t.Fatalf("unexpected failure DTO: %+v", dto)
	}
	if dto.LastFailureAt != "2026-03-13T22:10:00.000Z" {
		t.Fatalf("unexpected failure timestamp: %s", dto.LastFailureAt)
	}
	if dto.LastSuccessAt != "" {
		t.Fatalf("missing success time must stay empty, got %q", dto.LastSuccessAt)
	}
}

func TestFromHealthCarriesSummary(t *testing.T) {
	health := runstore.DatabaseHealth{
		Path:        "/data/subcue.db",
		SizeBytes:   4096,
		TotalRuns:   7,
		TotalFiles:  21,
		IntegrityOK: true,
		SchemaOK:    true,
		CheckedAt:   time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	dto := FromHealth(health)
	if dto.Summary != "ok (7 runs, 21 files)" {
		t.Fatalf("unexpected summary: %s", dto.Summary)
	}
	if dto.CheckedAt == "" || !dto.IntegrityOK || !dto.SchemaOK {
		t.Fatalf("unexpected health DTO: %+v", dto)
	}
}

func TestParseTimeRoundTrip(t *testing.T) {
	original := time.Date(2026, 3, 14, 9, 26, 53, 500*int(time.Millisecond), time.UTC)
	parsed := ParseTime(FormatTime(original))
	if !parsed.Equal(original) {
		t.Fatalf("expected %v, got %v", original, parsed)
	}
	if !ParseTime("").IsZero() {
		t.Fatalf("empty input must parse to the zero time")
	}
	if !ParseTime("not-a-time").IsZero() {
		t.Fatalf("malformed input must parse to the zero time")
	}
}
