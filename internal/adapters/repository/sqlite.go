package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/okian/xscaffold/internal/domain/model"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                   TEXT PRIMARY KEY,
	created_at           TIMESTAMP NOT NULL,
	seed                 TEXT NOT NULL,
	epsilon              REAL NOT NULL,
	formula              TEXT NOT NULL,
	batch_size           INTEGER NOT NULL,
	requested            INTEGER NOT NULL,
	generated            INTEGER NOT NULL,
	rejected             INTEGER NOT NULL,
	reference_path       TEXT NOT NULL DEFAULT '',
	output_path          TEXT NOT NULL DEFAULT '',
	correlation_distance REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at);
CREATE TABLE IF NOT EXISTS profiles (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	student_id TEXT NOT NULL,
	features   TEXT NOT NULL,
	score      REAL NOT NULL,
	level      INTEGER NOT NULL,
	PRIMARY KEY (run_id, student_id)
);
`

// SQLiteStore implements Store on SQLite through sqlx.
type SQLiteStore struct {
	db *sqlx.DB
}

// runRow is RunRecord as stored: the seed is kept as decimal text because
// SQLite integers are signed.
type runRow struct {
	RunRecord
	SeedText string `db:"seed"`
}

type profileRow struct {
	RunID     string  `db:"run_id"`
	StudentID string  `db:"student_id"`
	Features  string  `db:"features"`
	Score     float64 `db:"score"`
	Level     int     `db:"level"`
}

// Open opens (creating if needed) the database at path and applies the
// schema. ":memory:" opens a private in-memory database.
func Open(path string, opts ...Option) (*SQLiteStore, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps :memory: a single database and serializes writers.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db, cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func applyPragmas(db *sqlx.DB, cfg options) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// SaveRun stores a run and its profiles in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run RunRecord, profiles []model.StudentProfile) (err error) {
	if run.ID == "" {
		return fmt.Errorf("save run: %w", ErrMissingID)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := runRow{RunRecord: run, SeedText: strconv.FormatUint(run.Seed, 10)}
	if _, err = tx.NamedExecContext(ctx, `INSERT INTO runs
		(id, created_at, seed, epsilon, formula, batch_size, requested, generated, rejected,
		 reference_path, output_path, correlation_distance)
		VALUES (:id, :created_at, :seed, :epsilon, :formula, :batch_size, :requested, :generated, :rejected,
		 :reference_path, :output_path, :correlation_distance)`, row); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PreparexContext(ctx,
		`INSERT INTO profiles (run_id, student_id, features, score, level) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare profiles: %w", err)
	}
	defer stmt.Close()

	for _, p := range profiles {
		features, err := json.Marshal(p.Features)
		if err != nil {
			return fmt.Errorf("encode %s: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, run.ID, p.ID, string(features), p.Score, int(p.Level)); err != nil {
			return fmt.Errorf("insert profile %s: %w", p.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := make([]RunRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetRun returns one run.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (RunRecord, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return row.record()
}

// LoadProfiles returns the profiles of a run ordered by student id.
func (s *SQLiteStore) LoadProfiles(ctx context.Context, runID string) ([]model.StudentProfile, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	var rows []profileRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT run_id, student_id, features, score, level FROM profiles WHERE run_id = ? ORDER BY student_id`,
		runID); err != nil {
		return nil, fmt.Errorf("load profiles of %s: %w", runID, err)
	}
	out := make([]model.StudentProfile, len(rows))
	for i, r := range rows {
		var v model.FeatureVector
		if err := json.Unmarshal([]byte(r.Features), &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.StudentID, err)
		}
		out[i] = model.StudentProfile{ID: r.StudentID, Features: v, Score: r.Score, Level: model.MasteryLevel(r.Level)}
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (r runRow) record() (RunRecord, error) {
	rec := r.RunRecord
	seed, err := strconv.ParseUint(r.SeedText, 10, 64)
	if err != nil {
		return RunRecord{}, fmt.Errorf("run %s: bad seed %q: %w", rec.ID, r.SeedText, err)
	}
	rec.Seed = seed
	return rec, nil
}
