package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"time"
)

func runExport(ctx context.Context, db *sql.DB, w io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	channel := fs.String("channel", "", "only export this channel (email or sms)")
	fs.Parse(os.Args[1:])
	return export(ctx, db, *channel, w)
}

// export writes confirmed subscribers as CSV.
func export(ctx context.Context, db *sql.DB, channel string, w io.Writer) error {
	ss, err := stores(db, channel)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Write([]string{"channel", "address", "subscribed_at", "confirmed_at"})
	for _, s := range ss {
		subs, err := s.ListConfirmed(ctx)
		if err != nil {
			return err
		}
		for _, sub := range subs {
			cw.Write([]string{
				string(s.Channel()),
				sub.Address,
				sub.SubscribedAt.UTC().Format(time.RFC3339),
				sub.ConfirmedAt.UTC().Format(time.RFC3339),
			})
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
