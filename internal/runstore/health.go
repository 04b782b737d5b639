package runstore

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

var healthTables = []string{"runs", "file_results", "engine_failures", "schema_migrations"}

var expectedRunColumns = []string{
	"id",
	"start_time",
	"end_time",
	"total_files",
	"completed_files",
	"skipped_files",
	"failed_files",
	"total_engines",
	"completed_engines",
	"status",
	"log",
	"updated_at",
}

// CheckHealth probes the database file, schema, and integrity. Probe
// failures (unreachable file, failed queries) surface as an error;
// structural problems surface through the returned health flags.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	ctx = ensureContext(ctx)
	health := DatabaseHealth{
		Path:      s.path,
		CheckedAt: time.Now(),
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return health, fmt.Errorf("stat database file: %w", err)
	}
	health.SizeBytes = info.Size()

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		return health, fmt.Errorf("ping database: %w", err)
	}

	for _, table := range healthTables {
		var count int
		row := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		if err := row.Scan(&count); err != nil {
			return health, fmt.Errorf("check table %s: %w", table, err)
		}
		if count == 0 {
			health.MissingColumns = append(health.MissingColumns, table+" (table)")
		}
	}

	columns, err := s.tableColumns(ctx, "runs")
	if err != nil {
		return health, err
	}
	for _, expected := range expectedRunColumns {
		if _, ok := columns[expected]; !ok {
			health.MissingColumns = append(health.MissingColumns, "runs."+expected)
		}
	}
	health.SchemaOK = len(health.MissingColumns) == 0

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM runs`).Scan(&health.TotalRuns); err != nil {
		return health, fmt.Errorf("count runs: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM file_results`).Scan(&health.TotalFiles); err != nil {
		return health, fmt.Errorf("count file results: %w", err)
	}

	var verdict string
	if err := s.db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&verdict); err != nil {
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityOK = strings.EqualFold(strings.TrimSpace(verdict), "ok")

	return health, nil
}

func (s *Store) tableColumns(ctx context.Context, table string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return nil, fmt.Errorf("inspect table %s: %w", table, err)
	}
	defer rows.Close()
	columns := make(map[string]struct{})
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("inspect table %s: %w", table, err)
		}
		columns[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inspect table %s: %w", table, err)
	}
	return columns, nil
}
