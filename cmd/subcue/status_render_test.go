package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"subcue/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestEngineLines(t *testing.T) {
	engines := []api.EngineStatus{
		{Name: "ffsubsync", Command: "ffsubsync", Enabled: true, Available: false, Detail: `binary "ffsubsync" not found`},
		{Name: "autosubsync", Command: "autosubsync", Enabled: true, Available: true},
		{Name: "alass", Enabled: false},
	}
	summary := api.EngineSummary{
		Total:     3,
		Enabled:   2,
		Available: 1,
		Severity:  "warn",
		Detail:    "1/2 enabled engines available",
	}
	lines := engineLines(engines, summary, false)
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[WARN]") || !strings.Contains(lines[0], "Summary") {
		t.Fatalf("expected summary line first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR]") || !strings.Contains(lines[1], "not found") {
		t.Fatalf("expected error detail in second line, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[OK] Ready (command: autosubsync)") {
		t.Fatalf("expected ready detail in third line, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "[INFO] Disabled") {
		t.Fatalf("expected disabled line fourth, got %q", lines[3])
	}
	if !strings.Contains(lines[4], "Missing engines") {
		t.Fatalf("expected missing engines summary, got %q", lines[4])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"completed":  "Completed",
		"processing": "Processing",
		"":           "",
	}
	for input, want := range cases {
		if got := formatStatusLabel(input); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestComposeEngineCell(t *testing.T) {
	engines := []api.EngineResult{
		{Name: "ffsubsync", Success: true},
		{Name: "autosubsync", Skipped: true},
		{Name: "alass"},
	}
	got := composeEngineCell(engines)
	want := "ffsubsync=ok, autosubsync=skip, alass=fail"
	if got != want {
		t.Fatalf("composeEngineCell = %q, want %q", got, want)
	}
	if composeEngineCell(nil) != "-" {
		t.Fatalf("expected placeholder for empty engine list")
	}
}

func TestFormatRunDuration(t *testing.T) {
	if got := formatRunDuration(0); got != "-" {
		t.Fatalf("zero duration = %q, want -", got)
	}
	if got := formatRunDuration(12.34); got != "12.3s" {
		t.Fatalf("short duration = %q, want 12.3s", got)
	}
	if got := formatRunDuration(95); got != "1m35s" {
		t.Fatalf("long duration = %q, want 1m35s", got)
	}
}
