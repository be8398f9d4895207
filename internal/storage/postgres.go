package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/deusflow/musichub/internal/logger"
)

// PostgresLedger keeps the notification ledger in PostgreSQL so several
// notifier instances can share it.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(ctx context.Context, connectionString string) (*PostgresLedger, error) {
	db, err := sql.Open("pgx", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	l := &PostgresLedger{db: db}
	if err := l.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("PostgreSQL ledger connected")
	return l, nil
}

func (l *PostgresLedger) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sms_notifications (
		id SERIAL PRIMARY KEY,
		article_url TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		recipient_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sms_notifications_sent_at ON sms_notifications(sent_at);
	`
	_, err := l.db.ExecContext(ctx, schema)
	return err
}

func (l *PostgresLedger) IsSent(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sms_notifications WHERE article_url = $1)`, url).Scan(&exists)
	return exists, err
}

// MarkSent uses INSERT ON CONFLICT so concurrent notifiers do not race.
func (l *PostgresLedger) MarkSent(ctx context.Context, url, title string, recipients int) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sms_notifications (article_url, title, sent_at, recipient_count)
		VALUES ($1, $2, NOW(), $3)
		ON CONFLICT (article_url) DO UPDATE SET sent_at = NOW(), recipient_count = EXCLUDED.recipient_count
	`, url, title, recipients)
	if err != nil {
		return fmt.Errorf("failed to mark as sent: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}
