// Package runlog records pipeline run history in a local SQLite database.
package runlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	status      TEXT NOT NULL,
	error       TEXT,
	assets      TEXT
);
CREATE TABLE IF NOT EXISTS asset_runs (
	run_id      TEXT NOT NULL,
	asset       TEXT NOT NULL,
	rows        INTEGER,
	detail      TEXT,
	finished_at TIMESTAMP,
	PRIMARY KEY (run_id, asset)
);`

const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Run is one recorded pipeline run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Error      string
	Assets     []string
}

// AssetRun is the per-asset outcome within a run.
type AssetRun struct {
	RunID      string
	Asset      string
	Rows       int
	Detail     string
	FinishedAt time.Time
}

// Log wraps the run history database.
type Log struct {
	db *sql.DB
}

// Open opens (creating if needed) the run log at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize run log: %w", err)
	}
	return &Log{db: db}, nil
}

func (l *Log) Close() error { return l.db.Close() }

// Start records a new run and returns its ID.
func (l *Log) Start(assets []string) (string, error) {
	id := uuid.NewString()
	names, err := json.Marshal(assets)
	if err != nil {
		return "", err
	}
	_, err = l.db.Exec(
		`INSERT INTO runs (id, started_at, status, assets) VALUES (?, ?, ?, ?)`,
		id, time.Now().UTC(), StatusRunning, string(names))
	if err != nil {
		return "", fmt.Errorf("failed to record run start: %w", err)
	}
	return id, nil
}

// AssetDone records one asset's outcome within a run. detail carries
// asset-specific numbers (merge statistics, resume state) as JSON.
func (l *Log) AssetDone(runID, asset string, rows int, detail any) error {
	var detailJSON string
	if detail != nil {
		data, err := json.Marshal(detail)
		if err != nil {
			return err
		}
		detailJSON = string(data)
	}
	_, err := l.db.Exec(
		`INSERT OR REPLACE INTO asset_runs (run_id, asset, rows, detail, finished_at) VALUES (?, ?, ?, ?, ?)`,
		runID, asset, rows, detailJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record asset outcome: %w", err)
	}
	return nil
}

// Finish closes out a run. A non-nil runErr marks it failed.
func (l *Log) Finish(runID string, runErr error) error {
	status := StatusSuccess
	errText := ""
	if runErr != nil {
		status = StatusFailed
		errText = runErr.Error()
	}
	_, err := l.db.Exec(
		`UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?`,
		time.Now().UTC(), status, errText, runID)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (l *Log) Recent(limit int) ([]Run, error) {
	rows, err := l.db.Query(
		`SELECT id, started_at, finished_at, status, error, assets
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		var errText, names sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Status, &errText, &names); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		r.Error = errText.String
		if names.String != "" {
			json.Unmarshal([]byte(names.String), &r.Assets)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// AssetRuns returns the per-asset outcomes of a run.
func (l *Log) AssetRuns(runID string) ([]AssetRun, error) {
	rows, err := l.db.Query(
		`SELECT run_id, asset, rows, detail, finished_at
		 FROM asset_runs WHERE run_id = ? ORDER BY finished_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AssetRun
	for rows.Next() {
		var a AssetRun
		var detail sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&a.RunID, &a.Asset, &a.Rows, &detail, &finished); err != nil {
			return nil, err
		}
		a.Detail = detail.String
		if finished.Valid {
			a.FinishedAt = finished.Time
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
