package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const fileColumns = `id, run_id, path, video_path, language, status, current_engine, engines_json, note, created_at, updated_at`

func scanFileResult(scanner rowScanner) (*FileResult, error) {
	var (
		file          FileResult
		videoPath     sql.NullString
		lang          sql.NullString
		status        string
		currentEngine sql.NullString
		enginesJSON   string
		note          sql.NullString
		createdAt     string
		updatedAt     string
	)
	err := scanner.Scan(
		&file.ID,
		&file.RunID,
		&file.Path,
		&videoPath,
		&lang,
		&status,
		&currentEngine,
		&enginesJSON,
		&note,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	file.VideoPath = videoPath.String
	file.Language = lang.String
	parsed, err := ParseFileStatus(status)
	if err != nil {
		return nil, err
	}
	file.Status = parsed
	file.CurrentEngine = currentEngine.String
	file.Engines = map[string]EngineResult{}
	if trimmed := strings.TrimSpace(enginesJSON); trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &file.Engines); err != nil {
			return nil, fmt.Errorf("decode engine results for %s: %w", file.Path, err)
		}
	}
	file.Note = note.String
	file.CreatedAt = parseTimeString(createdAt)
	file.UpdatedAt = parseTimeString(updatedAt)
	return &file, nil
}

// CreateFileResults seeds one pending FileResult per matched subtitle
// file in a single transaction, then notifies listeners once per
// created row in creation order.
func (s *Store) CreateFileResults(ctx context.Context, runID string, seeds []FileSeed) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(runID) == "" {
		return errors.New("run id is required")
	}
	if len(seeds) == 0 {
		return nil
	}
	now := timeToString(time.Now())
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, seed := range seeds {
			if strings.TrimSpace(seed.Path) == "" {
				return errors.New("file path is required")
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO file_results (run_id, path, video_path, language, status, engines_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?, '{}', ?, ?)`,
				runID, seed.Path, nullableString(seed.VideoPath), nullableString(seed.Language), string(FileStatusPending), now, now)
			if err != nil {
				return fmt.Errorf("insert file result %s: %w", seed.Path, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, seed := range seeds {
		file, err := s.GetFileResult(ctx, runID, seed.Path)
		if err != nil {
			return err
		}
		s.notifyFile(file)
	}
	return nil
}

// UpdateFileProcessing moves a file to status processing and records
// which engine is working on it. An empty engine clears the column,
// which marks the file as claimed but between engines.
func (s *Store) UpdateFileProcessing(ctx context.Context, runID, path, engine string) (*FileResult, error) {
	ctx = ensureContext(ctx)
	now := timeToString(time.Now())
	result, err := s.execWithRetry(ctx,
		`UPDATE file_results SET status = ?, current_engine = ?, updated_at = ? WHERE run_id = ? AND path = ?`,
		string(FileStatusProcessing), nullableString(engine), now, runID, path)
	if err != nil {
		return nil, fmt.Errorf("mark file processing %s: %w", path, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("mark file processing %s: %w", path, err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("file %s not found in run %s", path, runID)
	}
	file, err := s.GetFileResult(ctx, runID, path)
	if err != nil {
		return nil, err
	}
	s.notifyFile(file)
	return file, nil
}

// MergeEngineResult records one engine's outcome into the file's
// engine map and advances the run's completed_engines counter in the
// same transaction, so the two never drift apart.
func (s *Store) MergeEngineResult(ctx context.Context, runID, path, engine string, result EngineResult) (*FileResult, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(engine) == "" {
		return nil, errors.New("engine name is required")
	}
	now := timeToString(time.Now())
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var enginesJSON string
		row := tx.QueryRowContext(ctx, `SELECT engines_json FROM file_results WHERE run_id = ? AND path = ?`, runID, path)
		if err := row.Scan(&enginesJSON); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("file %s not found in run %s", path, runID)
			}
			return fmt.Errorf("load engine results for %s: %w", path, err)
		}
		engines := map[string]EngineResult{}
		if trimmed := strings.TrimSpace(enginesJSON); trimmed != "" {
			if err := json.Unmarshal([]byte(trimmed), &engines); err != nil {
				return fmt.Errorf("decode engine results for %s: %w", path, err)
			}
		}
		engines[engine] = result
		encoded, err := json.Marshal(engines)
		if err != nil {
			return fmt.Errorf("encode engine results for %s: %w", path, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE file_results SET engines_json = ?, updated_at = ? WHERE run_id = ? AND path = ?`,
			string(encoded), now, runID, path); err != nil {
			return fmt.Errorf("store engine result for %s: %w", path, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE runs SET completed_engines = completed_engines + 1, updated_at = ? WHERE id = ?`,
			now, runID); err != nil {
			return fmt.Errorf("advance engine counter for run %s: %w", runID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	file, err := s.GetFileResult(ctx, runID, path)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, fmt.Errorf("file %s not found in run %s", path, runID)
	}
	s.notifyFile(file)
	return file, nil
}

func runCounterColumn(status FileStatus) (string, error) {
	switch status {
	case FileStatusCompleted:
		return "completed_files", nil
	case FileStatusSkipped:
		return "skipped_files", nil
	case FileStatusError:
		return "failed_files", nil
	default:
		return "", fmt.Errorf("status %q does not finish a file", status)
	}
}

// FinishFile moves a file to a terminal status and bumps the matching
// run counter in the same transaction. Finishing a file that is
// already terminal leaves both untouched and returns the stored row.
func (s *Store) FinishFile(ctx context.Context, runID, path string, status FileStatus, note string) (*FileResult, error) {
	ctx = ensureContext(ctx)
	counter, err := runCounterColumn(status)
	if err != nil {
		return nil, err
	}
	now := timeToString(time.Now())
	var transitioned bool
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE file_results SET status = ?, note = ?, current_engine = NULL, updated_at = ? WHERE run_id = ? AND path = ? AND status IN (?, ?)`,
			string(status), nullableString(note), now, runID, path,
			string(FileStatusPending), string(FileStatusProcessing))
		if err != nil {
			return fmt.Errorf("finish file %s: %w", path, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("finish file %s: %w", path, err)
		}
		if affected == 0 {
			return nil
		}
		transitioned = true
		if _, err := tx.ExecContext(ctx,
			`UPDATE runs SET `+counter+` = `+counter+` + 1, updated_at = ? WHERE id = ?`,
			now, runID); err != nil {
			return fmt.Errorf("advance run counters for %s: %w", runID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	file, err := s.GetFileResult(ctx, runID, path)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, fmt.Errorf("file %s not found in run %s", path, runID)
	}
	if transitioned {
		s.notifyFile(file)
	}
	return file, nil
}

// ListFileResults returns every file in a run in creation order,
// which matches the scanner's deterministic path order.
func (s *Store) ListFileResults(ctx context.Context, runID string) ([]*FileResult, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM file_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list file results for %s: %w", runID, err)
	}
	defer rows.Close()
	var files []*FileResult
	for rows.Next() {
		file, err := scanFileResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file result: %w", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list file results for %s: %w", runID, err)
	}
	return files, nil
}

// GetFileResult loads one file by path within a run, returning nil
// when it does not exist.
func (s *Store) GetFileResult(ctx context.Context, runID, path string) (*FileResult, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM file_results WHERE run_id = ? AND path = ?`, runID, path)
	file, err := scanFileResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load file result %s: %w", path, err)
	}
	return file, nil
}
