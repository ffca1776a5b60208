package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SqlArchive implements Archive with SQLite.
type SqlArchive struct {
	db *sql.DB
}

// OpenArchive opens or creates a SQLite archive at path and runs migrations.
// Creates the parent directory (e.g. .tribunal) if it does not exist.
func OpenArchive(path string) (*SqlArchive, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	a := &SqlArchive{db: db}
	if err := a.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *SqlArchive) migrate() error {
	var tableCount int
	err := a.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableCount == 0 {
		if _, err := a.db.Exec(archiveSchema); err != nil {
			return fmt.Errorf("create archive schema: %w", err)
		}
		if _, err := a.db.Exec("INSERT INTO schema_version(version) VALUES(?)", archiveSchemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	err = a.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != archiveSchemaVersion {
		return fmt.Errorf("unknown archive schema version %d", v)
	}
	return nil
}

// Close closes the database.
func (a *SqlArchive) Close() error { return a.db.Close() }

// SaveRun stores run. Run ids are unique.
func (a *SqlArchive) SaveRun(run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	if run.ID == "" {
		return errors.New("run id is required")
	}
	cp := *run
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	_, err = a.db.Exec(
		"INSERT INTO runs(id, target, created_at, overall_score, payload) VALUES(?, ?, ?, ?, ?)",
		cp.ID, cp.Target, cp.CreatedAt.UTC().Format(time.RFC3339Nano), cp.OverallScore, payload,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", cp.ID, err)
	}
	return nil
}

// ListRuns returns the runs for target (all runs when target is empty),
// oldest first.
func (a *SqlArchive) ListRuns(target string) ([]*Run, error) {
	query := "SELECT payload FROM runs"
	var args []any
	if target != "" {
		query += " WHERE target = ?"
		args = append(args, target)
	}
	query += " ORDER BY created_at, id"

	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		var r Run
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
