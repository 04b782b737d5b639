package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"subcue/internal/config"
	"subcue/internal/runstore"
)

// MustOpenStore opens a runstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runstore.Store {
	t.Helper()

	store, err := runstore.Open(cfg)
	if err != nil {
		t.Fatalf("runstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRun creates a running run with a fresh ID for tests.
func NewRun(t testing.TB, store *runstore.Store, totalFiles, totalEngines int) *runstore.Run {
	t.Helper()

	run, err := store.CreateRun(context.Background(), uuid.NewString(), totalFiles, totalEngines)
	if err != nil {
		t.Fatalf("store.CreateRun: %v", err)
	}
	return run
}

// SeedFiles populates pending file results for the given paths.
func SeedFiles(t testing.TB, store *runstore.Store, runID string, paths ...string) {
	t.Helper()

	seeds := make([]runstore.FileSeed, 0, len(paths))
	for _, path := range paths {
		seeds = append(seeds, runstore.FileSeed{Path: path})
	}
	if err := store.CreateFileResults(context.Background(), runID, seeds); err != nil {
		t.Fatalf("store.CreateFileResults: %v", err)
	}
}
