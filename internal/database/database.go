package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Ping verifies the relational store is reachable. Used by preflight; a
// failure there is fatal before any service starts.
func Ping(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// schema is the pipeline's table set. Initialize is a one-time hook run by
// the `init` subcommand; it is idempotent and owns no migrations.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS channels(
		id BIGINT PRIMARY KEY,
		title TEXT NOT NULL,
		username TEXT,
		added_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS messages(
		id BIGSERIAL PRIMARY KEY,
		channel_id BIGINT NOT NULL REFERENCES channels(id),
		telegram_id BIGINT NOT NULL,
		content TEXT,
		posted_at TIMESTAMPTZ NOT NULL,
		ingested_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE(channel_id, telegram_id)
	);`,
	`CREATE TABLE IF NOT EXISTS message_metadata(
		message_id BIGINT PRIMARY KEY REFERENCES messages(id),
		summary TEXT,
		sentiment TEXT,
		topics JSONB,
		model TEXT,
		analyzed_at TIMESTAMPTZ
	);`,
	`CREATE TABLE IF NOT EXISTS prompts(
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		version INT NOT NULL DEFAULT 1,
		template TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS alert_rules(
		id BIGSERIAL PRIMARY KEY,
		chat_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		query TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_messages_posted_at ON messages(posted_at);`,
}

// Initialize creates the pipeline schema once during `telrun init`.
func Initialize(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	for _, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
	}
	return nil
}
