// Package journal keeps a SQLite history of region runs and per-tile
// outcomes. It is reporting history only: the pipeline never consults it
// to decide what work to skip — resumability is filesystem-presence-based.
package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/terracol/terracol/internal/model"
)

// Journal records run history in a SQLite database.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path and applies the
// schema.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "journal: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "journal: exec %s", pragma)
		}
	}

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	region      TEXT NOT NULL,
	tiles       INTEGER NOT NULL,
	converted   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	rows_out    INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'running',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS tile_outcomes (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	tile        TEXT NOT NULL,
	state       TEXT NOT NULL,
	err_kind    TEXT,
	err_msg     TEXT,
	rows_out    INTEGER NOT NULL DEFAULT 0,
	recorded_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_region ON runs(region);
CREATE INDEX IF NOT EXISTS idx_tile_outcomes_run_id ON tile_outcomes(run_id);
`

func (j *Journal) migrate() error {
	_, err := j.db.Exec(migration)
	return eris.Wrap(err, "journal: migrate")
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Run is one recorded region run.
type Run struct {
	ID        string
	Region    string
	Tiles     int
	Converted int
	Failed    int
	Rows      int64
	Status    string
	Started   time.Time
	Finished  *time.Time
}

// StartRun inserts a new running entry and returns its ID.
func (j *Journal) StartRun(ctx context.Context, region string, tiles int) (string, error) {
	id := uuid.New().String()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, region, tiles, status, started_at) VALUES (?, ?, ?, 'running', ?)`,
		id, region, tiles, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "journal: insert run")
	}
	return id, nil
}

// RecordOutcome appends a tile outcome to the run.
func (j *Journal) RecordOutcome(ctx context.Context, runID string, o model.Outcome) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO tile_outcomes (id, run_id, tile, state, err_kind, err_msg, rows_out, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, o.Tile, string(o.State), string(o.ErrKind), o.ErrMsg, o.Rows, time.Now().UTC(),
	)
	return eris.Wrap(err, "journal: insert outcome")
}

// FinishRun stamps the run with its final counts and status.
func (j *Journal) FinishRun(ctx context.Context, runID string, report *model.Report) error {
	status := "complete"
	if report.FailedCount() > 0 {
		status = "failed"
	}
	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET converted = ?, failed = ?, rows_out = ?, status = ?, finished_at = ? WHERE id = ?`,
		report.Converted(), report.FailedCount(), report.Rows(), status, time.Now().UTC(), runID,
	)
	return eris.Wrap(err, "journal: finish run")
}

// ListRuns returns the most recent runs, newest first.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, region, tiles, converted, failed, rows_out, status, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "journal: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var out []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Region, &r.Tiles, &r.Converted, &r.Failed, &r.Rows, &r.Status, &r.Started, &finished); err != nil {
			return nil, eris.Wrap(err, "journal: scan run")
		}
		if finished.Valid {
			t := finished.Time
			r.Finished = &t
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "journal: iterate runs")
}

// Outcomes returns the tile outcomes recorded for a run.
func (j *Journal) Outcomes(ctx context.Context, runID string) ([]model.Outcome, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT tile, state, err_kind, err_msg, rows_out FROM tile_outcomes WHERE run_id = ? ORDER BY recorded_at`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "journal: query outcomes")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Outcome
	for rows.Next() {
		var o model.Outcome
		var state, kind string
		if err := rows.Scan(&o.Tile, &state, &kind, &o.ErrMsg, &o.Rows); err != nil {
			return nil, eris.Wrap(err, "journal: scan outcome")
		}
		o.State = model.TileState(state)
		o.ErrKind = model.ErrorKind(kind)
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "journal: iterate outcomes")
}
