// Package sqlite is the embedded single-node backend. It implements the same
// domain store interfaces as the Postgres stores, including the conditional
// status update that serializes run triggers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/botfleet/registry/internal/domain"
	_ "modernc.org/sqlite"
)

// Timestamps are stored as fixed-width UTC text so lexical order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS bots (
	id                       TEXT PRIMARY KEY,
	name                     TEXT NOT NULL,
	city_name                TEXT NOT NULL,
	country_code             TEXT NOT NULL,
	bot_token                TEXT NOT NULL,
	telegram_chat_id         TEXT NOT NULL,
	news_language            TEXT NOT NULL DEFAULT 'en',
	post_interval_minutes    INTEGER NOT NULL DEFAULT 30 CHECK (post_interval_minutes > 0),
	max_posts_per_run        INTEGER NOT NULL DEFAULT 5 CHECK (max_posts_per_run > 0),
	openai_api_key           TEXT,
	google_translate_api_key TEXT,
	newsapi_key              TEXT,
	is_active                INTEGER NOT NULL DEFAULT 1,
	status                   TEXT NOT NULL DEFAULT 'idle' CHECK (status IN ('idle', 'running', 'error')),
	last_run                 TEXT,
	total_posts              INTEGER NOT NULL DEFAULT 0 CHECK (total_posts >= 0),
	error_message            TEXT,
	run_started_at           TEXT,
	created_at               TEXT NOT NULL,
	updated_at               TEXT NOT NULL,
	CHECK (error_message IS NULL OR status = 'error')
);

CREATE TABLE IF NOT EXISTS bot_runs (
	id            TEXT PRIMARY KEY,
	bot_id        TEXT NOT NULL REFERENCES bots (id) ON DELETE CASCADE,
	run_time      TEXT NOT NULL,
	processed     INTEGER NOT NULL CHECK (processed >= 0),
	posted        INTEGER NOT NULL CHECK (posted >= 0 AND posted <= processed),
	duration      REAL NOT NULL CHECK (duration >= 0),
	status        TEXT NOT NULL CHECK (status IN ('success', 'error')),
	error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_bot_runs_bot_time ON bot_runs (bot_id, run_time DESC);

CREATE TABLE IF NOT EXISTS services (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	url         TEXT NOT NULL,
	description TEXT,
	status      TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
	last_ping   TEXT,
	created_at  TEXT NOT NULL
);
`

// DB wraps the connection pool so it can be health-checked like a pgxpool.Pool.
type DB struct {
	*sql.DB
}

func (d *DB) Ping(ctx context.Context) error {
	return d.PingContext(ctx)
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps writers serialized and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	if err := upgrade(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("upgrade sqlite schema: %w", err)
	}
	return &DB{DB: db}, nil
}

// upgrade brings databases created by older builds up to the current schema.
func upgrade(ctx context.Context, db *sql.DB) error {
	ok, err := hasColumn(ctx, db, "bots", "run_started_at")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := db.ExecContext(ctx, `ALTER TABLE bots ADD COLUMN run_started_at TEXT`); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx,
			`UPDATE bots SET run_started_at = updated_at WHERE status = 'running'`); err != nil {
			return err
		}
	}
	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_bots_running ON bots (run_started_at) WHERE status = 'running'`)
	return err
}

func hasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column,
	).Scan(&n)
	return n > 0, err
}

var (
	ErrNotFound = domain.ErrNotFound
	ErrConflict = domain.ErrConflict
)

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return err
	}
	return &domain.StoreError{Op: op, Err: err}
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
