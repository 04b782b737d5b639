package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrActiveRunExists is returned by CreateRun while another run still
// has status running.
var ErrActiveRunExists = errors.New("another run is already running")

const runColumns = `id, start_time, end_time, total_files, completed_files, skipped_files, failed_files, total_engines, completed_engines, status, log, updated_at`

// runSummaryColumns blanks the log column so listings do not drag
// every run's full log blob out of the database.
const runSummaryColumns = `id, start_time, end_time, total_files, completed_files, skipped_files, failed_files, total_engines, completed_engines, status, '', updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(scanner rowScanner) (*Run, error) {
	var (
		run       Run
		startTime string
		endTime   sql.NullString
		status    string
		updatedAt string
	)
	err := scanner.Scan(
		&run.ID,
		&startTime,
		&endTime,
		&run.TotalFiles,
		&run.CompletedFiles,
		&run.SkippedFiles,
		&run.FailedFiles,
		&run.TotalEngines,
		&run.CompletedEngines,
		&status,
		&run.Log,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.StartTime = parseTimeString(startTime)
	if endTime.Valid {
		ts := parseTimeString(endTime.String)
		run.EndTime = &ts
	}
	parsed, err := ParseRunStatus(status)
	if err != nil {
		return nil, err
	}
	run.Status = parsed
	run.UpdatedAt = parseTimeString(updatedAt)
	return &run, nil
}

// CreateRun allocates a new run in status running and notifies
// listeners with run:started. Exactly one run may be running at a
// time; a second CreateRun fails with ErrActiveRunExists.
func (s *Store) CreateRun(ctx context.Context, id string, totalFiles, totalEngines int) (*Run, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("run id is required")
	}
	now := timeToString(time.Now())
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var active int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM runs WHERE status = ?`, string(RunStatusRunning)).Scan(&active); err != nil {
			return fmt.Errorf("check active runs: %w", err)
		}
		if active > 0 {
			return ErrActiveRunExists
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, start_time, total_files, total_engines, status, log, updated_at) VALUES (?, ?, ?, ?, ?, '', ?)`,
			id, now, totalFiles, totalEngines, string(RunStatusRunning), now)
		if err != nil {
			return fmt.Errorf("insert run %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifyRun(EventRunStarted, run)
	return run, nil
}

// GetRun loads one run by ID, returning nil when it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	return run, nil
}

// ActiveRun returns the run currently in status running, or nil when
// the daemon is idle.
func (s *Store) ActiveRun(ctx context.Context) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE status = ? ORDER BY start_time DESC LIMIT 1`,
		string(RunStatusRunning))
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active run: %w", err)
	}
	return run, nil
}

// FinishRun moves a running run to a terminal status, stamps its end
// time, and notifies listeners with run:completed or run:cancelled.
// Finishing an already-terminal run is a no-op that returns the
// stored run without another notification.
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus) (*Run, error) {
	ctx = ensureContext(ctx)
	if !status.Terminal() {
		return nil, fmt.Errorf("status %q does not finish a run", status)
	}
	now := timeToString(time.Now())
	result, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, end_time = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(status), now, now, id, string(RunStatusRunning))
	if err != nil {
		return nil, fmt.Errorf("finish run %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("finish run %s: %w", id, err)
	}
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if affected == 0 {
		return run, nil
	}
	switch status {
	case RunStatusCancelled:
		s.notifyRun(EventRunCancelled, run)
	default:
		s.notifyRun(EventRunCompleted, run)
	}
	return run, nil
}

// AppendRunLog appends one line to the run's log. The line is stored
// with a trailing newline; appends are never rewritten afterwards
// except by the retention sweep.
func (s *Store) AppendRunLog(ctx context.Context, id, line string) error {
	ctx = ensureContext(ctx)
	entry := strings.TrimRight(line, "\n") + "\n"
	now := timeToString(time.Now())
	result, err := s.execWithRetry(ctx,
		`UPDATE runs SET log = log || ?, updated_at = ? WHERE id = ?`,
		entry, now, id)
	if err != nil {
		return fmt.Errorf("append run log %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("append run log %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// RunHistory lists runs newest first. The log column is left empty in
// the returned runs; use GetRun for the full record. A limit of zero
// or less returns the whole history.
func (s *Store) RunHistory(ctx context.Context, limit int) ([]*Run, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + runSummaryColumns + ` FROM runs ORDER BY start_time DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// RecoverInterrupted closes out runs left in status running by an
// unclean shutdown. Recovered runs become cancelled with their end
// time pinned to their start time, so their duration reads as zero.
// Open calls this before returning the store.
func (s *Store) RecoverInterrupted(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	now := timeToString(time.Now())
	result, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, end_time = start_time, updated_at = ? WHERE status = ?`,
		string(RunStatusCancelled), now, string(RunStatusRunning))
	if err != nil {
		return 0, fmt.Errorf("recover interrupted runs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("recover interrupted runs: %w", err)
	}
	return affected, nil
}
