package embedded

import (
	"context"
	"database/sql"
	"fmt"
)

const SchemaVersion = 1

// Migrate creates (or upgrades) the registry schema in-place.
func Migrate(ctx context.Context, db *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if db == nil {
		return fmt.Errorf("db is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL
		);`,
		`INSERT INTO schema_meta (id, schema_version)
			VALUES (1, 0)
			ON CONFLICT(id) DO NOTHING;`,

		// Tasks are append-only; ids are assigned monotonically from 0
		// and never reused (rows are never deleted).
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id INTEGER PRIMARY KEY,
			requester TEXT NOT NULL,
			spec_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,

		// The primary key on task_id is the first-writer-wins guarantee.
		`CREATE TABLE IF NOT EXISTS receipts (
			task_id INTEGER PRIMARY KEY REFERENCES tasks(task_id),
			operator TEXT NOT NULL,
			artifact_hash TEXT NOT NULL,
			result_hash TEXT NOT NULL,
			completed_at TEXT NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			task_id INTEGER NOT NULL,
			payload TEXT NOT NULL,
			emitted_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_task ON events(task_id);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply registry schema: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE schema_meta SET schema_version = ? WHERE schema_version < ?`,
		SchemaVersion, SchemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registry schema: %w", err)
	}
	return nil
}
