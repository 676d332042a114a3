package db

import (
	"context"
	"fmt"
	"time"
)

// schemaStatements holds the DDL for all tables. Statements are idempotent
// so every process can run them at startup without coordination.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS file (
		content_hash  TEXT PRIMARY KEY,
		stored_name   TEXT NOT NULL,
		relative_path TEXT NOT NULL,
		size_bytes    BIGINT NOT NULL,
		mime_type     TEXT NOT NULL,
		original_name TEXT NOT NULL,
		category      TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS model (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS model_version (
		id             UUID PRIMARY KEY,
		model_id       UUID NOT NULL REFERENCES model(id) ON DELETE CASCADE,
		version_number INT NOT NULL,
		content_hash   TEXT NOT NULL REFERENCES file(content_hash),
		is_active      BOOLEAN NOT NULL DEFAULT false,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (model_id, version_number)
	)`,

	`CREATE TABLE IF NOT EXISTS thumbnail_job (
		id               UUID PRIMARY KEY,
		target_kind      TEXT NOT NULL,
		target_id        UUID NOT NULL,
		content_hash     TEXT NOT NULL,
		status           TEXT NOT NULL DEFAULT 'Pending',
		attempt_count    INT NOT NULL DEFAULT 0,
		last_error       TEXT,
		lease_owner      TEXT,
		lease_expires_at TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_thumbnail_job_claim
		ON thumbnail_job (created_at)
		WHERE status IN ('Pending', 'Processing')`,

	`CREATE TABLE IF NOT EXISTS thumbnail_job_event (
		id         UUID PRIMARY KEY,
		job_id     UUID NOT NULL REFERENCES thumbnail_job(id) ON DELETE CASCADE,
		event_type TEXT NOT NULL,
		message    TEXT NOT NULL DEFAULT '',
		error      TEXT,
		metadata   JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_thumbnail_job_event_job
		ON thumbnail_job_event (job_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS thumbnail (
		id            UUID PRIMARY KEY,
		target_kind   TEXT NOT NULL,
		target_id     UUID NOT NULL,
		status        TEXT NOT NULL DEFAULT 'Pending',
		relative_path TEXT,
		size_bytes    BIGINT,
		width         INT,
		height        INT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (target_kind, target_id)
	)`,
}

// EnsureSchema creates all tables and indexes if they don't exist yet.
// Intended to run once at startup via the bootstrap DB init hook.
func EnsureSchema(database *DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := database.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
