package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/deusflow/musichub/internal/logger"
)

// Ledger records which article URLs have already been announced.
type Ledger interface {
	IsSent(ctx context.Context, url string) (bool, error)
	MarkSent(ctx context.Context, url, title string, recipients int) error
	Close() error
}

// LedgerOptions selects a backend: Postgres when DatabaseURL is set, then
// a JSON file when FilePath is set, otherwise the SQLite database.
type LedgerOptions struct {
	DatabaseURL string
	FilePath    string
	SQLite      *sql.DB
}

func OpenLedger(ctx context.Context, opts LedgerOptions) (Ledger, error) {
	switch {
	case opts.DatabaseURL != "":
		logger.Info("Using Postgres notification ledger")
		return NewPostgresLedger(ctx, opts.DatabaseURL)
	case opts.FilePath != "":
		logger.Info("Using file notification ledger", "path", opts.FilePath)
		fl := NewFileLedger(opts.FilePath)
		if err := fl.Load(); err != nil {
			return nil, err
		}
		return fl, nil
	default:
		return NewSQLiteLedger(opts.SQLite), nil
	}
}

// SQLiteLedger stores sent notifications in sms_notifications.
type SQLiteLedger struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteLedger(db *sql.DB) *SQLiteLedger {
	return &SQLiteLedger{db: db, now: time.Now}
}

func (l *SQLiteLedger) IsSent(ctx context.Context, url string) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sms_notifications WHERE article_url = ?`, url).Scan(&n)
	return n > 0, err
}

func (l *SQLiteLedger) MarkSent(ctx context.Context, url, title string, recipients int) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO sms_notifications (article_url, title, sent_at, recipient_count)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(article_url) DO UPDATE SET sent_at = excluded.sent_at, recipient_count = excluded.recipient_count`,
		url, title, formatTime(l.now()), recipients)
	return err
}

// Close is a no-op; the database is shared and closed by its owner.
func (l *SQLiteLedger) Close() error { return nil }
