package journal

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Event kinds recorded over one supervisor run.
const (
	KindSpawn       = "spawn"
	KindSpawnFailed = "spawn_failed"
	KindExit        = "exit"
	KindUnhealthy   = "unhealthy"
	KindRecovered   = "recovered"
	KindStopping    = "stopping"
	KindStopped     = "stopped"
	KindKilled      = "killed"
)

// Event is one lifecycle observation for a managed service.
type Event struct {
	At      time.Time `json:"at"`
	Service string    `json:"service"`
	Kind    string    `json:"kind"`
	Detail  string    `json:"detail,omitempty"`
}

// Recorder is the write-side seam the supervisor depends on.
type Recorder interface {
	Append(ctx context.Context, ev Event) error
}

// Journal records events for the current run in SQLite (modernc driver,
// CGO-free). The default DSN ":memory:" keeps the journal strictly
// per-run; the supervisor never reads a previous run's journal back.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database and ensures its schema.
func Open(dsn string) (*Journal, error) {
	d := strings.TrimSpace(dsn)
	if d == "" {
		d = ":memory:"
	}
	db, err := sql.Open("sqlite", d)
	if err != nil {
		return nil, err
	}
	// In-memory SQLite is per-connection; a second pooled connection would
	// see an empty database, so the pool is pinned to one.
	db.SetMaxOpenConns(1)
	_, _ = db.Exec("PRAGMA busy_timeout=3000;")
	j := &Journal{db: db}
	if err := j.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS run_events(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TIMESTAMP NOT NULL,
			service TEXT NOT NULL,
			kind TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_run_events_service ON run_events(service);`,
	}
	for _, q := range stmts {
		if _, err := j.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Append records one event.
func (j *Journal) Append(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if ev.Service == "" || ev.Kind == "" {
		return errors.New("journal event requires service and kind")
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO run_events(at, service, kind, detail) VALUES(?, ?, ?, ?);`,
		ev.At.UTC(), ev.Service, ev.Kind, ev.Detail)
	return err
}

// Recent returns up to limit events in chronological order. service narrows
// to one service when non-empty.
func (j *Journal) Recent(ctx context.Context, service string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if service != "" {
		rows, err = j.db.QueryContext(ctx, `
			SELECT at, service, kind, detail FROM run_events
			WHERE service=? ORDER BY id DESC LIMIT ?;`, service, limit)
	} else {
		rows, err = j.db.QueryContext(ctx, `
			SELECT at, service, kind, detail FROM run_events
			ORDER BY id DESC LIMIT ?;`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.At, &ev.Service, &ev.Kind, &ev.Detail); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// reverse: query returned newest first
	for i, k := 0, len(out)-1; i < k; i, k = i+1, k-1 {
		out[i], out[k] = out[k], out[i]
	}
	return out, nil
}
