// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package analysis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("analysis: run not found")

var schema = []string{`
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	algorithm    TEXT NOT NULL,
	mode         TEXT NOT NULL,
	origin_x     REAL NOT NULL,
	origin_y     REAL NOT NULL,
	origin_z     REAL NOT NULL,
	displacement REAL NOT NULL,
	step         REAL NOT NULL,
	mean_ssim    REAL,
	min_ssim     REAL,
	mean_mse     REAL,
	analyzed_at  INTEGER NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS results (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	name   TEXT NOT NULL,
	dx     REAL NOT NULL,
	dy     REAL NOT NULL,
	dz     REAL NOT NULL,
	ssim   REAL NOT NULL,
	mse    REAL NOT NULL,
	PRIMARY KEY (run_id, name)
)`,
	`CREATE INDEX IF NOT EXISTS results_by_ssim ON results (run_id, ssim)`,
}

// Store persists analysis reports in SQLite.
type Store struct {
	db *sql.DB
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	Info       RunInfo
	MeanSSIM   float64
	MinSSIM    float64
	MeanMSE    float64
	AnalyzedAt time.Time
}

// OpenStore opens or creates the database at path. Use ":memory:" for a
// private in-memory database.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open analysis db: %w", err)
	}
	// Every pooled connection to ":memory:" would see its own database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create analysis schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores r, replacing any earlier report of the same run.
func (s *Store) Save(ctx context.Context, r *Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	info := r.Info
	for _, q := range []string{`DELETE FROM results WHERE run_id = ?`, `DELETE FROM runs WHERE id = ?`} {
		if _, err := tx.ExecContext(ctx, q, info.ID); err != nil {
			return fmt.Errorf("delete previous run: %w", err)
		}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, algorithm, mode, origin_x, origin_y, origin_z, displacement, step, mean_ssim, min_ssim, mean_mse, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.ID, info.Algorithm, info.Mode,
		float64(info.Origin[0]), float64(info.Origin[1]), float64(info.Origin[2]),
		float64(info.Displacement), float64(info.Step),
		nullFloat(r.MeanSSIM, len(r.Results) > 0), nullFloat(r.MinSSIM, len(r.Results) > 0),
		nullFloat(r.MeanMSE, len(r.Results) > 0), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO results (run_id, name, dx, dy, dz, ssim, mse) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, res := range r.Results {
		d := res.Displacement
		if _, err := stmt.ExecContext(ctx, info.ID, res.Name,
			float64(d[0]), float64(d[1]), float64(d[2]), res.SSIM, res.MSE); err != nil {
			return fmt.Errorf("insert result %s: %w", res.Name, err)
		}
	}
	return tx.Commit()
}

// Load reads the report of run id. Results are ordered by displacement.
func (s *Store) Load(ctx context.Context, id string) (*Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, algorithm, mode, origin_x, origin_y, origin_z, displacement, step
		FROM runs WHERE id = ?`, id)
	var info RunInfo
	var ox, oy, oz, disp, step float64
	if err := row.Scan(&info.ID, &info.Algorithm, &info.Mode, &ox, &oy, &oz, &disp, &step); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}
	info.Origin = mgl32.Vec3{float32(ox), float32(oy), float32(oz)}
	info.Displacement, info.Step = float32(disp), float32(step)

	rows, err := s.db.QueryContext(ctx, `SELECT name, dx, dy, dz, ssim, mse FROM results
		WHERE run_id = ? ORDER BY dx, dy, dz, name`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []Result
	for rows.Next() {
		var res Result
		var dx, dy, dz float64
		if err := rows.Scan(&res.Name, &dx, &dy, &dz, &res.SSIM, &res.MSE); err != nil {
			return nil, err
		}
		res.Displacement = mgl32.Vec3{float32(dx), float32(dy), float32(dz)}
		res.Position = info.Origin.Add(res.Displacement)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewReport(info, results), nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, algorithm, mode, origin_x, origin_y, origin_z, displacement, step,
		COALESCE(mean_ssim, 0), COALESCE(min_ssim, 0), COALESCE(mean_mse, 0), analyzed_at
		FROM runs ORDER BY analyzed_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		var ox, oy, oz, disp, step float64
		var at int64
		if err := rows.Scan(&rs.Info.ID, &rs.Info.Algorithm, &rs.Info.Mode, &ox, &oy, &oz, &disp, &step,
			&rs.MeanSSIM, &rs.MinSSIM, &rs.MeanMSE, &at); err != nil {
			return nil, err
		}
		rs.Info.Origin = mgl32.Vec3{float32(ox), float32(oy), float32(oz)}
		rs.Info.Displacement, rs.Info.Step = float32(disp), float32(step)
		rs.AnalyzedAt = time.UnixMilli(at)
		out = append(out, rs)
	}
	return out, rows.Err()
}

func nullFloat(v float64, valid bool) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: valid && !math.IsNaN(v)}
}
