package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/marek-kar/codeaudit/pkg/model"
)

// Run is one recorded audit invocation.
type Run struct {
	ID        string
	StartedAt time.Time
	Catalog   model.CatalogRef
	Files     int
	Totals    model.Counts
	Failed    int
	Errored   int
}

type RunFile struct {
	File   string
	Status model.Status
	Counts model.Counts
	Error  string
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	// One writer; sqlite serialises anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun stores a summary and returns the new run id.
func (s *Store) RecordRun(ctx context.Context, summary model.Summary) (string, error) {
	runID := uuid.NewString()
	started := s.now().UTC().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx record run: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs(
			run_id, started_at, catalog_name, catalog_version, catalog_sha256,
			files, critical, major, minor, failed, errored
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, started, summary.Catalog.Name, summary.Catalog.Version, summary.Catalog.SHA256,
		len(summary.Files), summary.Totals.Critical, summary.Totals.Major, summary.Totals.Minor,
		summary.Statuses[model.StatusFail], summary.Statuses[model.StatusError])
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, o := range summary.Files {
		var c model.Counts
		if o.Result != nil {
			c = o.Result.Counts
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_files(run_id, seq, file, status, critical, major, minor, error)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, i, o.File, string(o.Status), c.Critical, c.Major, c.Minor, o.Error)
		if err != nil {
			return "", fmt.Errorf("insert run file %s: %w", o.File, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, catalog_name, catalog_version, catalog_sha256,
			files, critical, major, minor, failed, errored
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started int64
		if err := rows.Scan(&r.ID, &started, &r.Catalog.Name, &r.Catalog.Version, &r.Catalog.SHA256,
			&r.Files, &r.Totals.Critical, &r.Totals.Major, &r.Totals.Minor, &r.Failed, &r.Errored); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.Unix(started, 0).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func (s *Store) RunFiles(ctx context.Context, runID string) ([]RunFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file, status, critical, major, minor, error
		FROM run_files
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run files: %w", err)
	}
	defer rows.Close()

	var out []RunFile
	for rows.Next() {
		var f RunFile
		var status string
		if err := rows.Scan(&f.File, &status, &f.Counts.Critical, &f.Counts.Major, &f.Counts.Minor, &f.Error); err != nil {
			return nil, fmt.Errorf("scan run file: %w", err)
		}
		f.Status = model.Status(status)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run files: %w", err)
	}
	return out, nil
}
