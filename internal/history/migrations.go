package history

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration is one schema step.
type Migration struct {
	Version     int
	Description string
	Up          string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "runs and violations",
		Up:          migrationV1Up,
	},
	{
		Version:     2,
		Description: "violation lookup by cell",
		Up:          migrationV2Up,
	},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    started_at_ns   INTEGER NOT NULL,
    duration_ns     INTEGER NOT NULL,
    roots           TEXT NOT NULL,
    files           INTEGER NOT NULL,
    skipped         INTEGER NOT NULL,
    models          INTEGER NOT NULL,
    browsers        INTEGER NOT NULL,
    engines         INTEGER NOT NULL,
    exit_code       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at_ns);

CREATE TABLE IF NOT EXISTS violations (
    run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    ordinal         INTEGER NOT NULL,
    kind            TEXT NOT NULL,
    model           TEXT NOT NULL,
    browser         TEXT NOT NULL,
    variant         TEXT NOT NULL,
    engine          TEXT NOT NULL,
    reference       TEXT NOT NULL,
    description     TEXT NOT NULL,
    path_a          TEXT NOT NULL,
    path_b          TEXT NOT NULL,
    PRIMARY KEY (run_id, ordinal)
);
`

const migrationV2Up = `
CREATE INDEX IF NOT EXISTS idx_violations_cell ON violations(model, browser, variant, engine);
`

// migrate applies every migration newer than the recorded schema version.
func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			applied_at  INTEGER NOT NULL,
			description TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	current, err := schemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			m.Version, time.Now().UnixNano(), m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func schemaVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	return v, nil
}
