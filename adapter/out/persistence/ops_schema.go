package persistence

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLiteSchema is the local runbook schema. Postgres deployments own their
// schema through migrations; column names and semantics match.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS personas (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS persona_assignments (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	staff_id   TEXT NOT NULL,
	persona_id TEXT NOT NULL REFERENCES personas(id),
	account_id TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_persona_assignments_staff ON persona_assignments(staff_id);

CREATE TABLE IF NOT EXISTS work_task_templates (
	id         TEXT PRIMARY KEY,
	task_type  TEXT NOT NULL,
	time_slot  TEXT NOT NULL,
	priority   INTEGER NOT NULL DEFAULT 0,
	persona_id TEXT,
	rule       TEXT,
	frequency  TEXT NOT NULL DEFAULT 'daily',
	enabled    BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS work_tasks (
	id             TEXT PRIMARY KEY,
	staff_id       TEXT NOT NULL,
	account_id     TEXT,
	persona_id     TEXT NOT NULL,
	task_date      TEXT NOT NULL,
	task_kind      TEXT NOT NULL,
	task_type      TEXT NOT NULL,
	time_block     TEXT NOT NULL,
	scheduled_time TEXT NOT NULL,
	priority       INTEGER NOT NULL DEFAULT 0,
	payload        TEXT,
	status         TEXT NOT NULL,
	content_text   TEXT,
	platform       TEXT NOT NULL,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_work_tasks_staff_date ON work_tasks(staff_id, task_date);
`

// Migrate applies SQLiteSchema. It is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, SQLiteSchema); err != nil {
		return fmt.Errorf("apply sqlite schema: %w", err)
	}
	return nil
}
