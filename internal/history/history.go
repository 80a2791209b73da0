// Package history records report runs and their violations in SQLite so
// that regressions can be traced across runs.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"shotcheck/internal/report"
)

// ErrRunNotFound is returned when a run ID is not in the database.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded report run.
type Run struct {
	ID         string
	StartedAt  time.Time
	Duration   time.Duration
	Roots      []string
	Files      int
	Skipped    int
	Models     int
	Browsers   int
	Engines    int
	ExitCode   int
	Violations []report.Violation

	// ViolationCount is filled by RecentRuns, which does not load
	// Violations.
	ViolationCount int
}

// NewRun builds a Run from a report result. The ID is left empty for
// RecordRun to assign.
func NewRun(res *report.Result, roots []string, started time.Time) *Run {
	return &Run{
		StartedAt:      started,
		Duration:       res.Duration,
		Roots:          roots,
		Files:          res.Stats.Files,
		Skipped:        res.Stats.Skipped,
		Models:         len(res.Models),
		Browsers:       len(res.Browsers),
		Engines:        len(res.Engines),
		ExitCode:       res.ExitCode,
		Violations:     res.Violations,
		ViolationCount: len(res.Violations),
	}
}

// Store is the run history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SchemaVersion returns the applied schema version.
func (s *Store) SchemaVersion() (int, error) {
	return schemaVersion(s.db)
}

// RecordRun stores r and its violations in one transaction. An empty ID is
// replaced by a fresh UUID.
func (s *Store) RecordRun(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	roots, err := json.Marshal(r.Roots)
	if err != nil {
		return fmt.Errorf("encode roots: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at_ns, duration_ns, roots, files, skipped, models, browsers, engines, exit_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UnixNano(), int64(r.Duration), string(roots),
		r.Files, r.Skipped, r.Models, r.Browsers, r.Engines, r.ExitCode,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO violations (run_id, ordinal, kind, model, browser, variant, engine, reference, description, path_a, path_b)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare violation insert: %w", err)
	}
	defer stmt.Close()

	for i, v := range r.Violations {
		if _, err := stmt.ExecContext(ctx,
			r.ID, i, string(v.Kind), v.Model, v.Browser, v.Variant, v.Engine,
			v.ReferenceEngine, v.Description, v.PathA, v.PathB,
		); err != nil {
			return fmt.Errorf("insert violation %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	r.ViolationCount = len(r.Violations)
	return nil
}

// RecentRuns returns up to n runs, newest first, without their violations.
func (s *Store) RecentRuns(ctx context.Context, n int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.started_at_ns, r.duration_ns, r.roots, r.files, r.skipped,
		       r.models, r.browsers, r.engines, r.exit_code,
		       (SELECT COUNT(*) FROM violations v WHERE v.run_id = r.id)
		FROM runs r
		ORDER BY r.started_at_ns DESC, r.rowid DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRun returns one run with its violations.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.started_at_ns, r.duration_ns, r.roots, r.files, r.skipped,
		       r.models, r.browsers, r.engines, r.exit_code,
		       (SELECT COUNT(*) FROM violations v WHERE v.run_id = r.id)
		FROM runs r WHERE r.id = ?`, id)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	r.Violations, err = s.Violations(ctx, id)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Violations returns the violations of a run in report order.
func (s *Store) Violations(ctx context.Context, runID string) ([]report.Violation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, model, browser, variant, engine, reference, description, path_a, path_b
		FROM violations WHERE run_id = ? ORDER BY ordinal`, runID)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer rows.Close()

	out := []report.Violation{}
	for rows.Next() {
		var v report.Violation
		var kind string
		if err := rows.Scan(&kind, &v.Model, &v.Browser, &v.Variant, &v.Engine,
			&v.ReferenceEngine, &v.Description, &v.PathA, &v.PathB); err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		v.Kind = report.Kind(kind)
		out = append(out, v)
	}
	return out, rows.Err()
}

// Compare returns the violations present in cur but not prev, and those
// present in prev but gone from cur. Violations are matched on kind and
// cell, not on description or path.
func (s *Store) Compare(ctx context.Context, prevID, curID string) (added, resolved []report.Violation, err error) {
	prev, err := s.Violations(ctx, prevID)
	if err != nil {
		return nil, nil, err
	}
	cur, err := s.Violations(ctx, curID)
	if err != nil {
		return nil, nil, err
	}

	type cell struct {
		kind                            report.Kind
		model, browser, variant, engine string
	}
	keyOf := func(v report.Violation) cell {
		return cell{v.Kind, v.Model, v.Browser, v.Variant, v.Engine}
	}

	before := make(map[cell]bool, len(prev))
	for _, v := range prev {
		before[keyOf(v)] = true
	}
	after := make(map[cell]bool, len(cur))
	for _, v := range cur {
		after[keyOf(v)] = true
		if !before[keyOf(v)] {
			added = append(added, v)
		}
	}
	for _, v := range prev {
		if !after[keyOf(v)] {
			resolved = append(resolved, v)
		}
	}
	return added, resolved, nil
}

// Prune deletes all but the newest keep runs and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at_ns DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r        Run
		started  int64
		duration int64
		roots    string
	)
	err := sc.Scan(&r.ID, &started, &duration, &roots, &r.Files, &r.Skipped,
		&r.Models, &r.Browsers, &r.Engines, &r.ExitCode, &r.ViolationCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt = time.Unix(0, started)
	r.Duration = time.Duration(duration)
	if err := json.Unmarshal([]byte(roots), &r.Roots); err != nil {
		return nil, fmt.Errorf("decode roots: %w", err)
	}
	return &r, nil
}
