// Package storage persists subscribers, the notification ledger and the
// release lookup cache.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrAlreadySubscribed = errors.New("already subscribed")
	ErrNotFound          = errors.New("not found")
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS subscribers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT UNIQUE NOT NULL,
	confirmation_token TEXT UNIQUE NOT NULL,
	confirmed BOOLEAN NOT NULL DEFAULT FALSE,
	subscribed_at TEXT NOT NULL,
	confirmed_at TEXT,
	ip_address TEXT,
	user_agent TEXT
);

CREATE TABLE IF NOT EXISTS sms_subscribers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	phone_number TEXT UNIQUE NOT NULL,
	confirmation_token TEXT UNIQUE NOT NULL,
	confirmed BOOLEAN NOT NULL DEFAULT FALSE,
	subscribed_at TEXT NOT NULL,
	confirmed_at TEXT,
	ip_address TEXT,
	user_agent TEXT
);

CREATE TABLE IF NOT EXISTS sms_notifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	article_url TEXT UNIQUE NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	sent_at TEXT NOT NULL,
	recipient_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS release_cache (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	mm_dd TEXT NOT NULL,
	start_year INTEGER NOT NULL,
	end_year INTEGER NOT NULL,
	results_json TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(mm_dd, start_year, end_year)
);

CREATE INDEX IF NOT EXISTS idx_release_cache_created ON release_cache(created_at);
`

// connPragmas are applied by the driver to every pooled connection.
var connPragmas = []string{
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=" + strings.Join(connPragmas, "&_pragma=")
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema. ":memory:" is supported for tests.
func OpenSQLite(path string) (*sql.DB, error) {
	memory := path == ":memory:" || strings.Contains(path, "mode=memory")
	if !memory {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("storage: mkdir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: schema: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	return db, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
