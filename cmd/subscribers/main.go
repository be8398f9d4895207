// Command subscribers inspects and maintains the newsletter and SMS lists.
//
//	subscribers list [email|sms]
//	subscribers export [-channel email|sms]
//	subscribers clear-pending [-yes]
package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/deusflow/musichub/internal/storage"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: subscribers <list [email|sms] | export [-channel email|sms] | clear-pending [-yes]>")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd := os.Args[1]
	os.Args = append(os.Args[:1], os.Args[2:]...)

	ctx := context.Background()
	db := openDB()
	defer db.Close()

	var err error
	switch cmd {
	case "list":
		err = runList(ctx, db, os.Stdout)
	case "export":
		err = runExport(ctx, db, os.Stdout)
	case "clear-pending":
		err = runClearPending(ctx, db, bufio.NewReader(os.Stdin), os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func openDB() *sql.DB {
	path := os.Getenv("DB_PATH")
	if path == "" {
		path = "musichub.db"
	}
	db, err := storage.OpenSQLite(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		os.Exit(1)
	}
	return db
}

// stores returns the subscriber stores selected by name; "" means both.
func stores(db *sql.DB, name string) ([]*storage.SubscriberStore, error) {
	channels := []storage.Channel{storage.ChannelEmail, storage.ChannelSMS}
	if name != "" {
		channels = []storage.Channel{storage.Channel(name)}
	}
	out := make([]*storage.SubscriberStore, 0, len(channels))
	for _, ch := range channels {
		s, err := storage.NewSubscriberStore(db, ch)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
