// Package archive persists computed position runs to SQLite so exports can be
// re-served without re-propagating.
package archive

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/navtrace/navtrace/internal/orbit"
)

// Archive is a SQLite-backed store of position runs.
type Archive struct {
	db *sql.DB
}

// Open opens (or creates) the archive database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral archive.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			prn TEXT NOT NULL,
			source TEXT,
			dt REAL NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS samples (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			t REAL NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_samples_run ON samples(run_id);
		CREATE INDEX IF NOT EXISTS idx_runs_prn ON runs(prn);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating archive schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// SaveRun stores one satellite's run and returns its run ID. The samples are
// written in a single transaction; a failed run leaves no partial rows.
func (a *Archive) SaveRun(prn, source string, dt float64, samples []orbit.PositionSample) (int64, error) {
	tx, err := a.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT INTO runs (prn, source, dt, created_at) VALUES (?, ?, ?, ?)",
		prn, source, dt, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO samples (run_id, t, x, y, z) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("preparing sample insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.Exec(runID, s.T, s.X, s.Y, s.Z); err != nil {
			return 0, fmt.Errorf("inserting sample at t=%.3f: %w", s.T, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// LoadRun returns the samples of a stored run in epoch order.
func (a *Archive) LoadRun(runID int64) ([]orbit.PositionSample, error) {
	rows, err := a.db.Query(
		"SELECT t, x, y, z FROM samples WHERE run_id = ? ORDER BY t", runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying run %d: %w", runID, err)
	}
	defer rows.Close()

	var samples []orbit.PositionSample
	for rows.Next() {
		var s orbit.PositionSample
		if err := rows.Scan(&s.T, &s.X, &s.Y, &s.Z); err != nil {
			return nil, fmt.Errorf("scanning sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// RunInfo describes one stored run.
type RunInfo struct {
	ID        int64
	PRN       string
	Source    string
	Dt        float64
	CreatedAt time.Time
	Samples   int
}

// Runs lists stored runs for a PRN, newest first. An empty PRN lists all runs.
func (a *Archive) Runs(prn string) ([]RunInfo, error) {
	query := `
		SELECT r.id, r.prn, COALESCE(r.source, ''), r.dt, r.created_at, COUNT(s.run_id)
		FROM runs r LEFT JOIN samples s ON s.run_id = r.id
	`
	args := []any{}
	if prn != "" {
		query += " WHERE r.prn = ?"
		args = append(args, prn)
	}
	query += " GROUP BY r.id ORDER BY r.created_at DESC, r.id DESC"

	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var info RunInfo
		if err := rows.Scan(&info.ID, &info.PRN, &info.Source, &info.Dt, &info.CreatedAt, &info.Samples); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, info)
	}
	return runs, rows.Err()
}
