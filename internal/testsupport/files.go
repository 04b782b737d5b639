package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleCue = "1\n00:00:01,000 --> 00:00:02,500\nExample line\n\n"

// WriteSubtitle creates a minimal subtitle file at path, creating
// parent directories as needed, and returns the path.
func WriteSubtitle(t testing.TB, path string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(sampleCue), 0o644); err != nil {
		t.Fatalf("write subtitle %s: %v", path, err)
	}
	return path
}

// TouchVideo creates a small stand-in video file at path, creating
// parent directories as needed, and returns the path.
func TouchVideo(t testing.TB, path string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("\x00video"), 0o644); err != nil {
		t.Fatalf("write video %s: %v", path, err)
	}
	return path
}
