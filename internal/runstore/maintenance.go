package runstore

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

const logTrimMarker = "[log trimmed to retention budget]"

// second-precision layout used for cutoff comparisons; RFC3339Nano
// strings are not lexicographically ordered once fractional seconds
// of different widths mix, so sweeps compare on a fixed prefix.
const cutoffLayout = "2006-01-02T15:04:05"

func cutoffString(ts time.Time) string {
	return ts.UTC().Format(cutoffLayout)
}

// Sweep applies the retention policy: runs older than KeepDays are
// deleted outright (file results cascade with them), and runs older
// than TrimDays keep their row but have oversized logs cut back to
// MaxLogBytes with a marker line appended. The running run is never
// touched, and failure history is never pruned. A zero KeepDays or
// TrimDays disables that half of the sweep.
func (s *Store) Sweep(ctx context.Context, policy SweepPolicy) (SweepResult, error) {
	ctx = ensureContext(ctx)
	var summary SweepResult
	now := time.Now()

	if policy.KeepDays > 0 {
		cutoff := cutoffString(now.AddDate(0, 0, -policy.KeepDays))
		result, err := s.execWithRetry(ctx,
			`DELETE FROM runs WHERE status != ? AND substr(start_time, 1, 19) < ?`,
			string(RunStatusRunning), cutoff)
		if err != nil {
			return summary, fmt.Errorf("delete expired runs: %w", err)
		}
		deleted, err := result.RowsAffected()
		if err != nil {
			return summary, fmt.Errorf("delete expired runs: %w", err)
		}
		summary.RunsDeleted = deleted
	}

	if policy.TrimDays > 0 && policy.MaxLogBytes > 0 {
		cutoff := cutoffString(now.AddDate(0, 0, -policy.TrimDays))
		trimmed, saved, err := s.trimRunLogs(ctx, cutoff, policy.MaxLogBytes)
		if err != nil {
			return summary, err
		}
		summary.RunsTrimmed = trimmed
		summary.BytesTrimmed = saved
	}

	return summary, nil
}

func (s *Store) trimRunLogs(ctx context.Context, cutoff string, maxLogBytes int64) (int64, int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, log FROM runs WHERE status != ? AND substr(start_time, 1, 19) < ? AND length(CAST(log AS BLOB)) > ?`,
		string(RunStatusRunning), cutoff, maxLogBytes)
	if err != nil {
		return 0, 0, fmt.Errorf("find oversized run logs: %w", err)
	}
	type candidate struct {
		id  string
		log string
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.log); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("scan oversized run log: %w", err)
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("find oversized run logs: %w", err)
	}

	var trimmed, saved int64
	now := timeToString(time.Now())
	for _, c := range candidates {
		next, ok := trimLog(c.log, maxLogBytes)
		if !ok {
			continue
		}
		if _, err := s.execWithRetry(ctx,
			`UPDATE runs SET log = ?, updated_at = ? WHERE id = ?`,
			next, now, c.id); err != nil {
			return trimmed, saved, fmt.Errorf("trim run log %s: %w", c.id, err)
		}
		trimmed++
		saved += int64(len(c.log) - len(next))
	}
	return trimmed, saved, nil
}

// trimLog cuts a log back under maxBytes, ending on a line boundary,
// and appends the trim marker. The marker's own length counts against
// the budget so a trimmed log never needs trimming again.
func trimLog(log string, maxBytes int64) (string, bool) {
	raw := []byte(log)
	if int64(len(raw)) <= maxBytes {
		return log, false
	}
	allowed := int(maxBytes) - len(logTrimMarker) - 1
	if allowed < 0 {
		allowed = 0
	}
	head := raw[:allowed]
	if idx := bytes.LastIndexByte(head, '\n'); idx >= 0 {
		head = head[:idx+1]
	} else {
		head = nil
	}
	next := string(head) + logTrimMarker + "\n"
	if len(next) >= len(raw) {
		return log, false
	}
	return next, true
}

// Size reports the database footprint in bytes from SQLite's own
// page accounting.
func (s *Store) Size(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("read page count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("read page size: %w", err)
	}
	return pageCount * pageSize, nil
}

// Vacuum compacts the database file. Worth running after a sweep that
// deleted a large batch of runs.
func (s *Store) Vacuum(ctx context.Context) error {
	ctx = ensureContext(ctx)
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("vacuum database: %w", err)
	}
	return nil
}
