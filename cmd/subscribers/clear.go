package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

func runClearPending(ctx context.Context, db *sql.DB, in *bufio.Reader, w io.Writer) error {
	fs := flag.NewFlagSet("clear-pending", flag.ExitOnError)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	fs.Parse(os.Args[1:])
	return clearPending(ctx, db, *yes, in, w)
}

// clearPending deletes unconfirmed subscribers from both lists after the
// operator types "yes".
func clearPending(ctx context.Context, db *sql.DB, yes bool, in *bufio.Reader, w io.Writer) error {
	if !yes {
		fmt.Fprint(w, "This will delete all PENDING subscribers. Are you sure? (yes/no): ")
		answer, _ := in.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "yes" {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	ss, err := stores(db, "")
	if err != nil {
		return err
	}
	for _, s := range ss {
		n, err := s.ClearPending(ctx)
		if err != nil {
			return fmt.Errorf("clear pending %s subscribers: %w", s.Channel(), err)
		}
		fmt.Fprintf(w, "Deleted %d pending %s subscribers\n", n, s.Channel())
	}
	return nil
}
