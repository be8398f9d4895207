package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// Channel identifies a subscriber list.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// table returns the table and address column for the channel.
func (c Channel) table() (string, string, error) {
	switch c {
	case ChannelEmail:
		return "subscribers", "email", nil
	case ChannelSMS:
		return "sms_subscribers", "phone_number", nil
	}
	return "", "", fmt.Errorf("unknown channel %q", c)
}

type Subscriber struct {
	ID           int64
	Address      string // email address or E.164 phone number
	Confirmed    bool
	SubscribedAt time.Time
	ConfirmedAt  time.Time
	IPAddress    string
	UserAgent    string
}

// AddResult reports the token to send. Resend is true when the address
// was already pending and its existing token is reused.
type AddResult struct {
	ID     int64
	Token  string
	Resend bool
}

type SubscriberCounts struct {
	Confirmed int `json:"confirmed_subscribers"`
	Pending   int `json:"pending_confirmations"`
	Total     int `json:"total"`
}

// SubscriberStore manages the double opt-in list for one channel.
type SubscriberStore struct {
	db      *sql.DB
	channel Channel
	table   string
	column  string
	now     func() time.Time
}

func NewSubscriberStore(db *sql.DB, channel Channel) (*SubscriberStore, error) {
	table, column, err := channel.table()
	if err != nil {
		return nil, err
	}
	return &SubscriberStore{db: db, channel: channel, table: table, column: column, now: time.Now}, nil
}

func (s *SubscriberStore) Channel() Channel { return s.channel }

// NewToken returns 32 random bytes as unpadded URL-safe base64.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Add registers a pending subscriber. A confirmed address yields
// ErrAlreadySubscribed; a pending one is returned with its existing token.
func (s *SubscriberStore) Add(ctx context.Context, address, ip, userAgent string) (AddResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return AddResult{}, err
	}
	defer tx.Rollback()

	var (
		id        int64
		token     string
		confirmed bool
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, confirmation_token, confirmed FROM `+s.table+` WHERE `+s.column+` = ?`, address,
	).Scan(&id, &token, &confirmed)
	switch {
	case err == nil:
		if confirmed {
			return AddResult{}, ErrAlreadySubscribed
		}
		return AddResult{ID: id, Token: token, Resend: true}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return AddResult{}, fmt.Errorf("lookup %s subscriber: %w", s.channel, err)
	}

	token, err = NewToken()
	if err != nil {
		return AddResult{}, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO `+s.table+` (`+s.column+`, confirmation_token, subscribed_at, ip_address, user_agent)
		 VALUES (?, ?, ?, ?, ?)`,
		address, token, formatTime(s.now()), ip, userAgent)
	if err != nil {
		return AddResult{}, fmt.Errorf("insert %s subscriber: %w", s.channel, err)
	}
	id, _ = res.LastInsertId()

	if err := tx.Commit(); err != nil {
		return AddResult{}, err
	}
	return AddResult{ID: id, Token: token}, nil
}

// Confirm marks the pending subscriber holding token as confirmed. It
// returns false for unknown or already-confirmed tokens.
func (s *SubscriberStore) Confirm(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+s.table+` SET confirmed = TRUE, confirmed_at = ? WHERE confirmation_token = ? AND confirmed = FALSE`,
		formatTime(s.now()), token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SubscriberStore) IsConfirmed(ctx context.Context, address string) (bool, error) {
	var confirmed bool
	err := s.db.QueryRowContext(ctx,
		`SELECT confirmed FROM `+s.table+` WHERE `+s.column+` = ?`, address).Scan(&confirmed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return confirmed, err
}

// Token returns the confirmation token for address or ErrNotFound.
func (s *SubscriberStore) Token(ctx context.Context, address string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT confirmation_token FROM `+s.table+` WHERE `+s.column+` = ?`, address).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return token, err
}

// ListConfirmed returns confirmed subscribers, most recently confirmed first.
func (s *SubscriberStore) ListConfirmed(ctx context.Context) ([]Subscriber, error) {
	return s.list(ctx, `WHERE confirmed = TRUE ORDER BY confirmed_at DESC, id DESC`)
}

// ListAll returns every subscriber, newest first.
func (s *SubscriberStore) ListAll(ctx context.Context) ([]Subscriber, error) {
	return s.list(ctx, `ORDER BY subscribed_at DESC, id DESC`)
}

func (s *SubscriberStore) list(ctx context.Context, tail string) ([]Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, `+s.column+`, confirmed, subscribed_at, confirmed_at, COALESCE(ip_address, ''), COALESCE(user_agent, '')
		 FROM `+s.table+` `+tail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		var (
			sub                     Subscriber
			subscribed, confirmedAt sql.NullString
		)
		if err := rows.Scan(&sub.ID, &sub.Address, &sub.Confirmed, &subscribed, &confirmedAt, &sub.IPAddress, &sub.UserAgent); err != nil {
			return nil, err
		}
		sub.SubscribedAt = parseTime(subscribed)
		sub.ConfirmedAt = parseTime(confirmedAt)
		out = append(out, sub)
	}
	return out, rows.Err()
}

// Unsubscribe deletes address and reports whether a row was removed.
func (s *SubscriberStore) Unsubscribe(ctx context.Context, address string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE `+s.column+` = ?`, address)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SubscriberStore) Counts(ctx context.Context) (SubscriberCounts, error) {
	var c SubscriberCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN confirmed THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN confirmed THEN 0 ELSE 1 END), 0)
		 FROM `+s.table).Scan(&c.Confirmed, &c.Pending)
	c.Total = c.Confirmed + c.Pending
	return c, err
}

// ClearPending deletes all unconfirmed subscribers and returns how many.
func (s *SubscriberStore) ClearPending(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE confirmed = FALSE`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
