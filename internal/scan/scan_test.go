package scan_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"subcue/internal/scan"
	"subcue/internal/services"
	"subcue/internal/testsupport"
)

func options(roots ...string) scan.Options {
	return scan.Options{
		Roots:           roots,
		Extensions:      []string{".srt"},
		OutputMarker:    "synced",
		WalkConcurrency: 4,
	}
}

func TestRunFindsSortedCandidates(t *testing.T) {
	root := t.TempDir()
	b := testsupport.WriteSubtitle(t, filepath.Join(root, "shows", "beta.srt"))
	a := testsupport.WriteSubtitle(t, filepath.Join(root, "movies", "alpha.srt"))
	c := testsupport.WriteSubtitle(t, filepath.Join(root, "shows", "season1", "gamma.srt"))
	testsupport.TouchVideo(t, filepath.Join(root, "movies", "alpha.mkv"))

	result, err := scan.Run(context.Background(), options(root))
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	want := []string{a, b, c}
	if len(result.Subtitles) != len(want) {
		t.Fatalf("expected %d subtitles, got %v", len(want), result.Subtitles)
	}
	for i, path := range want {
		if result.Subtitles[i] != path {
			t.Fatalf("expected %s at index %d, got %s", path, i, result.Subtitles[i])
		}
	}
	if result.FilesScanned < 4 {
		t.Fatalf("expected at least 4 files scanned, got %d", result.FilesScanned)
	}
	if result.DirsWalked < 3 {
		t.Fatalf("expected at least 3 dirs walked, got %d", result.DirsWalked)
	}
}

func TestRunExcludesEngineOutputs(t *testing.T) {
	root := t.TempDir()
	source := testsupport.WriteSubtitle(t, filepath.Join(root, "movie.en.srt"))
	testsupport.WriteSubtitle(t, filepath.Join(root, "movie.en.ffsubsync.synced.srt"))
	testsupport.WriteSubtitle(t, filepath.Join(root, "movie.en.autosubsync.synced.srt"))

	result, err := scan.Run(context.Background(), options(root))
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(result.Subtitles) != 1 || result.Subtitles[0] != source {
		t.Fatalf("expected only the source subtitle, got %v", result.Subtitles)
	}
}

func TestRunFiltersExtensions(t *testing.T) {
	root := t.TempDir()
	srt := testsupport.WriteSubtitle(t, filepath.Join(root, "movie.srt"))
	ass := testsupport.WriteSubtitle(t, filepath.Join(root, "movie.ass"))
	testsupport.WriteSubtitle(t, filepath.Join(root, "movie.txt"))

	opts := options(root)
	opts.Extensions = []string{".srt", ".ass"}
	result, err := scan.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(result.Subtitles) != 2 {
		t.Fatalf("expected 2 subtitles, got %v", result.Subtitles)
	}
	if result.Subtitles[0] != ass || result.Subtitles[1] != srt {
		t.Fatalf("unexpected order: %v", result.Subtitles)
	}
}

func TestRunSkipsExcludedDirs(t *testing.T) {
	root := t.TempDir()
	kept := testsupport.WriteSubtitle(t, filepath.Join(root, "library", "movie.srt"))
	testsupport.WriteSubtitle(t, filepath.Join(root, "extras", "bonus.srt"))
	testsupport.WriteSubtitle(t, filepath.Join(root, "library", "samples", "sample.srt"))

	opts := options(root)
	opts.ExcludeDirs = []string{filepath.Join(root, "extras"), "samples"}
	result, err := scan.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(result.Subtitles) != 1 || result.Subtitles[0] != kept {
		t.Fatalf("expected only %s, got %v", kept, result.Subtitles)
	}
}

func TestRunSkipsHiddenDirs(t *testing.T) {
	root := t.TempDir()
	kept := testsupport.WriteSubtitle(t, filepath.Join(root, "movie.srt"))
	testsupport.WriteSubtitle(t, filepath.Join(root, ".cache", "stale.srt"))

	result, err := scan.Run(context.Background(), options(root))
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(result.Subtitles) != 1 || result.Subtitles[0] != kept {
		t.Fatalf("expected only %s, got %v", kept, result.Subtitles)
	}
}

func TestRunMergesMultipleRoots(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	a := testsupport.WriteSubtitle(t, filepath.Join(rootA, "one.srt"))
	b := testsupport.WriteSubtitle(t, filepath.Join(rootB, "two.srt"))

	result, err := scan.Run(context.Background(), options(rootA, rootB))
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(result.Subtitles) != 2 {
		t.Fatalf("expected 2 subtitles, got %v", result.Subtitles)
	}
	seen := map[string]bool{}
	for _, path := range result.Subtitles {
		seen[path] = true
	}
	if !seen[a] || !seen[b] {
		t.Fatalf("expected both roots represented, got %v", result.Subtitles)
	}
}

func TestRunMissingRootFails(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteSubtitle(t, filepath.Join(root, "movie.srt"))

	if _, err := scan.Run(context.Background(), options(root, filepath.Join(root, "missing"))); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestRunRootMustBeDirectory(t *testing.T) {
	root := t.TempDir()
	file := testsupport.WriteSubtitle(t, filepath.Join(root, "movie.srt"))

	if _, err := scan.Run(context.Background(), options(file)); err == nil {
		t.Fatal("expected error for file root")
	}
}

func TestRunNoRootsConfigured(t *testing.T) {
	_, err := scan.Run(context.Background(), scan.Options{})
	if err == nil {
		t.Fatal("expected error when no roots configured")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration classification, got %v", err)
	}
}

func TestRunHonorsCancelledContext(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteSubtitle(t, filepath.Join(root, "movie.srt"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := scan.Run(ctx, options(root)); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
