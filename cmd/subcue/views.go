package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	xlang "golang.org/x/text/language"

	"subcue/internal/api"
	"subcue/internal/language"
)

func buildHistoryRows(runs []api.Run) [][]string {
	if len(runs) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			formatStatusLabel(run.Status),
			formatDisplayTime(run.StartTime),
			formatRunDuration(run.DurationSeconds),
			fmt.Sprintf("%d", run.TotalFiles),
			fmt.Sprintf("%d", run.CompletedFiles),
			fmt.Sprintf("%d", run.SkippedFiles),
			fmt.Sprintf("%d", run.FailedFiles),
		})
	}
	return rows
}

func buildRunFileRows(files []api.FileResult) [][]string {
	if len(files) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(files))
	for _, file := range files {
		rows = append(rows, []string{
			file.Path,
			formatLanguageLabel(file.Language),
			formatStatusLabel(file.Status),
			composeEngineCell(file.Engines),
			file.Note,
		})
	}
	return rows
}

func buildFailureRows(failures []api.Failure) [][]string {
	if len(failures) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(failures))
	for _, failure := range failures {
		rows = append(rows, []string{
			failure.File,
			failure.Engine,
			fmt.Sprintf("%d", failure.ConsecutiveFailures),
			formatRelativeTime(failure.LastFailureAt),
			yesNo(failure.Skipped),
		})
	}
	return rows
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// composeEngineCell renders per-engine outcomes as "name=ok, name=fail".
func composeEngineCell(engines []api.EngineResult) string {
	if len(engines) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(engines))
	for _, engine := range engines {
		outcome := "fail"
		switch {
		case engine.Skipped:
			outcome = "skip"
		case engine.Success:
			outcome = "ok"
		}
		parts = append(parts, engine.Name+"="+outcome)
	}
	return strings.Join(parts, ", ")
}

// formatLanguageLabel renders a detected language code as its display
// name ("en" becomes "English"), or "-" when nothing was detected.
func formatLanguageLabel(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "-"
	}
	return language.DisplayName(code)
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	label := strings.ToLower(strings.ReplaceAll(status, "_", " "))
	return cases.Title(xlang.Und).String(label)
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	t := api.ParseTime(value)
	if t.IsZero() {
		return value
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// formatRelativeTime renders a timestamp as a human age ("2 hours ago").
func formatRelativeTime(value string) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func formatRunDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	d := time.Duration(seconds * float64(time.Second))
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Truncate(time.Second).String()
}
