package runstore_test

import (
	"context"
	"testing"

	"subcue/internal/runstore"
	"subcue/internal/testsupport"
)

func TestRecordFailureLatchesSkipAtThreshold(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	const file = "/media/a.en.srt"
	for i := 1; i < runstore.SkipThreshold; i++ {
		record, err := store.RecordFailure(ctx, file, "ffsubsync")
		if err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
		if record.ConsecutiveFailures != i {
			t.Fatalf("expected %d failures, got %d", i, record.ConsecutiveFailures)
		}
		if record.IsSkipped {
			t.Fatalf("skip latched too early at %d failures", i)
		}
	}

	record, err := store.RecordFailure(ctx, file, "ffsubsync")
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if record.ConsecutiveFailures != runstore.SkipThreshold {
		t.Fatalf("expected %d failures, got %d", runstore.SkipThreshold, record.ConsecutiveFailures)
	}
	if !record.IsSkipped {
		t.Fatal("expected skip to latch at threshold")
	}
	if record.LastFailureAt == nil {
		t.Fatal("expected last failure timestamp")
	}

	skip, err := store.ShouldSkip(ctx, file, "ffsubsync")
	if err != nil {
		t.Fatalf("ShouldSkip failed: %v", err)
	}
	if !skip {
		t.Fatal("expected ShouldSkip true after latch")
	}

	// The streak keeps counting past the threshold and stays latched.
	record, err = store.RecordFailure(ctx, file, "ffsubsync")
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if record.ConsecutiveFailures != runstore.SkipThreshold+1 || !record.IsSkipped {
		t.Fatalf("unexpected record past threshold: %#v", record)
	}
}

func TestRecordSuccessResetsStreak(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	const file = "/media/a.en.srt"
	for i := 0; i < runstore.SkipThreshold; i++ {
		if _, err := store.RecordFailure(ctx, file, "ffsubsync"); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}

	record, err := store.RecordSuccess(ctx, file, "ffsubsync")
	if err != nil {
		t.Fatalf("RecordSuccess failed: %v", err)
	}
	if record.ConsecutiveFailures != 0 {
		t.Fatalf("expected streak reset, got %d", record.ConsecutiveFailures)
	}
	if record.IsSkipped {
		t.Fatal("expected skip cleared after success")
	}
	if record.LastSuccessAt == nil {
		t.Fatal("expected last success timestamp")
	}
	if record.LastFailureAt == nil {
		t.Fatal("expected failure history to remain")
	}

	skip, err := store.ShouldSkip(ctx, file, "ffsubsync")
	if err != nil {
		t.Fatalf("ShouldSkip failed: %v", err)
	}
	if skip {
		t.Fatal("expected ShouldSkip false after success")
	}
}

func TestRecordSuccessCreatesRecordForNewPair(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	record, err := store.RecordSuccess(context.Background(), "/media/new.en.srt", "autosubsync")
	if err != nil {
		t.Fatalf("RecordSuccess failed: %v", err)
	}
	if record == nil || record.ConsecutiveFailures != 0 || record.IsSkipped {
		t.Fatalf("unexpected record: %#v", record)
	}
	if record.LastSuccessAt == nil {
		t.Fatal("expected last success timestamp")
	}
}

func TestShouldSkipUnknownPair(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	skip, err := store.ShouldSkip(context.Background(), "/media/unknown.srt", "ffsubsync")
	if err != nil {
		t.Fatalf("ShouldSkip failed: %v", err)
	}
	if skip {
		t.Fatal("expected unknown pair to not be skipped")
	}
}

func TestFailureStreaksIndependentPerEngine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	const file = "/media/a.en.srt"
	for i := 0; i < runstore.SkipThreshold; i++ {
		if _, err := store.RecordFailure(ctx, file, "ffsubsync"); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}
	if _, err := store.RecordFailure(ctx, file, "autosubsync"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	skipped, err := store.ListSkipped(ctx, file)
	if err != nil {
		t.Fatalf("ListSkipped failed: %v", err)
	}
	if len(skipped) != 1 || skipped[0] != "ffsubsync" {
		t.Fatalf("expected only ffsubsync skipped, got %v", skipped)
	}
}

func TestResetSkipSingleEngine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	const file = "/media/a.en.srt"
	for _, engine := range []string{"ffsubsync", "autosubsync"} {
		for i := 0; i < runstore.SkipThreshold; i++ {
			if _, err := store.RecordFailure(ctx, file, engine); err != nil {
				t.Fatalf("RecordFailure failed: %v", err)
			}
		}
	}

	affected, err := store.ResetSkip(ctx, file, "ffsubsync")
	if err != nil {
		t.Fatalf("ResetSkip failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 record reset, got %d", affected)
	}

	skipped, err := store.ListSkipped(ctx, file)
	if err != nil {
		t.Fatalf("ListSkipped failed: %v", err)
	}
	if len(skipped) != 1 || skipped[0] != "autosubsync" {
		t.Fatalf("expected autosubsync still skipped, got %v", skipped)
	}
}

func TestResetSkipAllEngines(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	const file = "/media/a.en.srt"
	for _, engine := range []string{"ffsubsync", "autosubsync"} {
		for i := 0; i < runstore.SkipThreshold; i++ {
			if _, err := store.RecordFailure(ctx, file, engine); err != nil {
				t.Fatalf("RecordFailure failed: %v", err)
			}
		}
	}

	affected, err := store.ResetSkip(ctx, file, "")
	if err != nil {
		t.Fatalf("ResetSkip failed: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected 2 records reset, got %d", affected)
	}

	skipped, err := store.ListSkipped(ctx, file)
	if err != nil {
		t.Fatalf("ListSkipped failed: %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("expected no skipped engines, got %v", skipped)
	}

	record, err := store.GetFailure(ctx, file, "ffsubsync")
	if err != nil {
		t.Fatalf("GetFailure failed: %v", err)
	}
	if record.ConsecutiveFailures != 0 {
		t.Fatalf("expected streak cleared, got %d", record.ConsecutiveFailures)
	}
	if record.LastFailureAt == nil {
		t.Fatal("expected failure history to remain after reset")
	}
}

func TestListFailuresFiltersSkipped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < runstore.SkipThreshold; i++ {
		if _, err := store.RecordFailure(ctx, "/media/b.en.srt", "ffsubsync"); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}
	if _, err := store.RecordFailure(ctx, "/media/a.en.srt", "ffsubsync"); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	all, err := store.ListFailures(ctx, false)
	if err != nil {
		t.Fatalf("ListFailures failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	if all[0].File != "/media/a.en.srt" {
		t.Fatalf("expected file ordering, got %s first", all[0].File)
	}

	skippedOnly, err := store.ListFailures(ctx, true)
	if err != nil {
		t.Fatalf("ListFailures failed: %v", err)
	}
	if len(skippedOnly) != 1 || skippedOnly[0].File != "/media/b.en.srt" {
		t.Fatalf("unexpected skipped records: %#v", skippedOnly)
	}
}

func TestFailureValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.RecordFailure(ctx, "", "ffsubsync"); err == nil {
		t.Fatal("expected error for blank file")
	}
	if _, err := store.RecordFailure(ctx, "/media/a.en.srt", " "); err == nil {
		t.Fatal("expected error for blank engine")
	}
	if _, err := store.ResetSkip(ctx, "", ""); err == nil {
		t.Fatal("expected error for blank file")
	}
}
