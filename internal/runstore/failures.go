package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SkipThreshold is the number of consecutive failures after which an
// engine is skipped for a file until the streak is broken by a
// success or an explicit reset.
const SkipThreshold = 3

const failureColumns = `file, engine, consecutive_failures, last_failure_at, last_success_at, is_skipped, updated_at`

func scanFailure(scanner rowScanner) (*FailureRecord, error) {
	var (
		record    FailureRecord
		lastFail  sql.NullString
		lastOK    sql.NullString
		skipped   int
		updatedAt string
	)
	err := scanner.Scan(
		&record.File,
		&record.Engine,
		&record.ConsecutiveFailures,
		&lastFail,
		&lastOK,
		&skipped,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastFail.Valid {
		ts := parseTimeString(lastFail.String)
		record.LastFailureAt = &ts
	}
	if lastOK.Valid {
		ts := parseTimeString(lastOK.String)
		record.LastSuccessAt = &ts
	}
	record.IsSkipped = skipped != 0
	record.UpdatedAt = parseTimeString(updatedAt)
	return &record, nil
}

func validateFailureKey(file, engine string) error {
	if strings.TrimSpace(file) == "" {
		return errors.New("file path is required")
	}
	if strings.TrimSpace(engine) == "" {
		return errors.New("engine name is required")
	}
	return nil
}

// RecordFailure extends the failure streak for one (file, engine)
// pair, latching the skip flag once the streak reaches SkipThreshold.
func (s *Store) RecordFailure(ctx context.Context, file, engine string) (*FailureRecord, error) {
	ctx = ensureContext(ctx)
	if err := validateFailureKey(file, engine); err != nil {
		return nil, err
	}
	now := timeToString(time.Now())
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		row := tx.QueryRowContext(ctx,
			`SELECT consecutive_failures FROM engine_failures WHERE file = ? AND engine = ?`, file, engine)
		scanErr := row.Scan(&count)
		if errors.Is(scanErr, sql.ErrNoRows) {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO engine_failures (file, engine, consecutive_failures, last_failure_at, is_skipped, updated_at) VALUES (?, ?, 1, ?, ?, ?)`,
				file, engine, now, boolToInt(1 >= SkipThreshold), now)
			if err != nil {
				return fmt.Errorf("insert failure record: %w", err)
			}
			return nil
		}
		if scanErr != nil {
			return fmt.Errorf("load failure record: %w", scanErr)
		}
		next := count + 1
		_, err := tx.ExecContext(ctx,
			`UPDATE engine_failures SET consecutive_failures = ?, last_failure_at = ?, is_skipped = ?, updated_at = ? WHERE file = ? AND engine = ?`,
			next, now, boolToInt(next >= SkipThreshold), now, file, engine)
		if err != nil {
			return fmt.Errorf("update failure record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetFailure(ctx, file, engine)
}

// RecordSuccess breaks the failure streak for one (file, engine)
// pair: the count returns to zero and the skip flag clears, whatever
// the previous streak was.
func (s *Store) RecordSuccess(ctx context.Context, file, engine string) (*FailureRecord, error) {
	ctx = ensureContext(ctx)
	if err := validateFailureKey(file, engine); err != nil {
		return nil, err
	}
	now := timeToString(time.Now())
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE engine_failures SET consecutive_failures = 0, last_success_at = ?, is_skipped = 0, updated_at = ? WHERE file = ? AND engine = ?`,
			now, now, file, engine)
		if err != nil {
			return fmt.Errorf("update failure record: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update failure record: %w", err)
		}
		if affected == 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO engine_failures (file, engine, consecutive_failures, last_success_at, is_skipped, updated_at) VALUES (?, ?, 0, ?, 0, ?)`,
				file, engine, now, now); err != nil {
				return fmt.Errorf("insert failure record: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetFailure(ctx, file, engine)
}

// ShouldSkip reports whether the skip flag is latched for a (file,
// engine) pair. Pairs with no history are never skipped.
func (s *Store) ShouldSkip(ctx context.Context, file, engine string) (bool, error) {
	ctx = ensureContext(ctx)
	if err := validateFailureKey(file, engine); err != nil {
		return false, err
	}
	var skipped int
	row := s.db.QueryRowContext(ctx,
		`SELECT is_skipped FROM engine_failures WHERE file = ? AND engine = ?`, file, engine)
	err := row.Scan(&skipped)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load skip flag: %w", err)
	}
	return skipped != 0, nil
}

// ResetSkip clears the failure streak and skip flag for a file. An
// empty engine resets every engine recorded for the file; otherwise
// only the named pair resets. Returns how many records changed.
func (s *Store) ResetSkip(ctx context.Context, file, engine string) (int64, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(file) == "" {
		return 0, errors.New("file path is required")
	}
	now := timeToString(time.Now())
	query := `UPDATE engine_failures SET consecutive_failures = 0, is_skipped = 0, updated_at = ? WHERE file = ?`
	args := []any{now, file}
	if trimmed := strings.TrimSpace(engine); trimmed != "" {
		query += ` AND engine = ?`
		args = append(args, trimmed)
	}
	result, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset skip for %s: %w", file, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset skip for %s: %w", file, err)
	}
	return affected, nil
}

// GetFailure loads the failure record for one (file, engine) pair,
// returning nil when the pair has no history.
func (s *Store) GetFailure(ctx context.Context, file, engine string) (*FailureRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+failureColumns+` FROM engine_failures WHERE file = ? AND engine = ?`, file, engine)
	record, err := scanFailure(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load failure record: %w", err)
	}
	return record, nil
}

// ListSkipped returns the engines currently skipped for a file,
// sorted by engine name.
func (s *Store) ListSkipped(ctx context.Context, file string) ([]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT engine FROM engine_failures WHERE file = ? AND is_skipped = 1 ORDER BY engine`, file)
	if err != nil {
		return nil, fmt.Errorf("list skipped engines for %s: %w", file, err)
	}
	defer rows.Close()
	var engines []string
	for rows.Next() {
		var engine string
		if err := rows.Scan(&engine); err != nil {
			return nil, fmt.Errorf("scan skipped engine: %w", err)
		}
		engines = append(engines, engine)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list skipped engines for %s: %w", file, err)
	}
	return engines, nil
}

// ListFailures returns failure records ordered by file then engine,
// optionally restricted to pairs with the skip flag latched. Failure
// history is deliberately outside the retention sweep, so this view
// spans every run the store has ever seen.
func (s *Store) ListFailures(ctx context.Context, onlySkipped bool) ([]*FailureRecord, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + failureColumns + ` FROM engine_failures`
	if onlySkipped {
		query += ` WHERE is_skipped = 1`
	}
	query += ` ORDER BY file, engine`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list failure records: %w", err)
	}
	defer rows.Close()
	var records []*FailureRecord
	for rows.Next() {
		record, err := scanFailure(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failure record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list failure records: %w", err)
	}
	return records, nil
}
