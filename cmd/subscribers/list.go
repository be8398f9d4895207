package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/deusflow/musichub/internal/storage"
)

const timeFormat = "2006-01-02 15:04"

func runList(ctx context.Context, db *sql.DB, w io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.Parse(os.Args[1:])
	return list(ctx, db, fs.Arg(0), w)
}

func list(ctx context.Context, db *sql.DB, channel string, w io.Writer) error {
	ss, err := stores(db, channel)
	if err != nil {
		return err
	}
	for i, s := range ss {
		if i > 0 {
			fmt.Fprintln(w)
		}
		counts, err := s.Counts(ctx)
		if err != nil {
			return err
		}
		subs, err := s.ListAll(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%s subscribers: %d confirmed, %d pending, %d total\n",
			strings.ToUpper(string(s.Channel())), counts.Confirmed, counts.Pending, counts.Total)
		if len(subs) == 0 {
			continue
		}
		rows := [][]string{{"ID", "ADDRESS", "STATUS", "SUBSCRIBED", "CONFIRMED"}}
		for _, sub := range subs {
			rows = append(rows, []string{
				fmt.Sprint(sub.ID),
				sub.Address,
				status(sub),
				formatTime(sub.SubscribedAt),
				formatTime(sub.ConfirmedAt),
			})
		}
		for _, line := range table(rows) {
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func status(s storage.Subscriber) string {
	if s.Confirmed {
		return "✅ confirmed"
	}
	return "⏳ pending"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeFormat)
}

// table pads each column to its widest cell by display width.
func table(rows [][]string) []string {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	out := make([]string, 0, len(rows)+1)
	for r, row := range rows {
		var sb strings.Builder
		for i, cell := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(cell)
			if i < len(row)-1 {
				sb.WriteString(strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell)))
			}
		}
		out = append(out, sb.String())
		if r == 0 {
			var sep []string
			for _, wd := range widths {
				sep = append(sep, strings.Repeat("-", wd))
			}
			out = append(out, strings.Join(sep, "  "))
		}
	}
	return out
}
