package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// SentNotification is one announced article.
type SentNotification struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Recipients int       `json:"recipients"`
	SentAt     time.Time `json:"sent_at"`
}

// FileLedger keeps the ledger in a JSON file and writes it after every
// change.
type FileLedger struct {
	filePath string
	items    map[string]SentNotification
	mu       sync.RWMutex
}

func NewFileLedger(filePath string) *FileLedger {
	return &FileLedger{
		filePath: filePath,
		items:    make(map[string]SentNotification),
	}
}

// Load reads the ledger file; a missing or empty file is an empty ledger.
func (fl *FileLedger) Load() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	data, err := os.ReadFile(fl.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read ledger file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var items []SentNotification
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to unmarshal ledger: %w", err)
	}
	for _, item := range items {
		fl.items[item.URL] = item
	}
	return nil
}

func (fl *FileLedger) save() error {
	items := make([]SentNotification, 0, len(fl.items))
	for _, item := range fl.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SentAt.Before(items[j].SentAt) })

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	tmp := fl.filePath + ".tmp"
	if dir := filepath.Dir(fl.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	return os.Rename(tmp, fl.filePath)
}

func (fl *FileLedger) IsSent(ctx context.Context, url string) (bool, error) {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	_, ok := fl.items[url]
	return ok, nil
}

func (fl *FileLedger) MarkSent(ctx context.Context, url, title string, recipients int) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	fl.items[url] = SentNotification{URL: url, Title: title, Recipients: recipients, SentAt: time.Now().UTC()}
	return fl.save()
}

func (fl *FileLedger) Close() error { return nil }
