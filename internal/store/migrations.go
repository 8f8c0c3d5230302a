package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all tickos tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		fpu          TEXT NOT NULL DEFAULT 'none',
		state        TEXT NOT NULL DEFAULT 'RUNNING',
		ticks        INTEGER NOT NULL DEFAULT 0,
		switches     INTEGER NOT NULL DEFAULT 0,
		halt_reason  TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL,
		completed_at TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS switch_events (
		run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq       INTEGER NOT NULL,
		tick      INTEGER NOT NULL,
		from_task INTEGER NOT NULL,
		to_task   INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,

	`CREATE TABLE IF NOT EXISTS task_reports (
		run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		task_id    INTEGER NOT NULL,
		name       TEXT NOT NULL,
		policy     TEXT NOT NULL,
		priority   INTEGER NOT NULL DEFAULT 0,
		period     INTEGER NOT NULL DEFAULT 0,
		runs       INTEGER NOT NULL DEFAULT 0,
		missed     INTEGER NOT NULL DEFAULT 0,
		ticks_used INTEGER NOT NULL DEFAULT 0,
		stack_size INTEGER NOT NULL DEFAULT 0,
		stack_used INTEGER NOT NULL DEFAULT 0,
		canary_ok  INTEGER NOT NULL DEFAULT 1,
		wait_desc  TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, task_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_name ON runs(name)`,
	`CREATE INDEX IF NOT EXISTS idx_switch_events_tick ON switch_events(run_id, tick)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	// Source manifest, kept so a run can be replayed.
	{
		table:    "runs",
		column:   "manifest",
		alterSQL: "ALTER TABLE runs ADD COLUMN manifest TEXT NOT NULL DEFAULT ''",
	},
}

// migrate executes all schema DDL statements and alter migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}
	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	exists, err := hasColumn(ctx, db, table, column)
	if err != nil || exists {
		return err
	}
	_, err = db.ExecContext(ctx, alterSQL)
	return err
}

func hasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}
