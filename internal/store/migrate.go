package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SchemaVersion is the latest schema version supported by the migrator
const SchemaVersion = 1

// The same DDL serves Postgres and SQLite: text ids, text JSON columns and
// fixed-width text timestamps.
var schema = []struct {
	name string
	ddl  string
}{
	{"conversations", `CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL DEFAULT '',
		user_name TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0,
		scope TEXT NULL,
		clarification TEXT NULL,
		blocked INTEGER NOT NULL DEFAULT 0,
		blocked_at TEXT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`},
	{"turns", `CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		query TEXT NOT NULL,
		altered_query TEXT NOT NULL DEFAULT '',
		intents TEXT NULL,
		entities TEXT NULL,
		handler TEXT NOT NULL DEFAULT '',
		response TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`},
	{"turns index", `CREATE INDEX IF NOT EXISTS turns_conversation_idx ON turns (conversation_id, created_at)`},
	{"issues", `CREATE TABLE IF NOT EXISTS issues (
		conversation_id TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`},
}

// Migrate ensures the schema exists and is upgraded to SchemaVersion
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, step := range schema {
		if _, err := tx.ExecContext(ctx, step.ddl); err != nil {
			return fmt.Errorf("migrate: create %s: %w", step.name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO schema_migrations (version) VALUES (?)`), SchemaVersion); err != nil {
		return fmt.Errorf("migrate: record version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit: %w", err)
	}
	s.log.Info("store migrated", zap.String("dialect", s.dialect), zap.Int("version", SchemaVersion))
	return nil
}
