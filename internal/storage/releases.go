package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/deusflow/musichub/internal/logger"
)

const DefaultReleaseCacheDays = 30

type ReleaseCacheStats struct {
	TotalEntries  int `json:"total_entries"`
	RecentEntries int `json:"recent_entries"` // created within the last 7 days
	ExpiryDays    int `json:"cache_expiry_days"`
}

// ReleaseCache stores release lookups as JSON keyed by day and year range.
type ReleaseCache struct {
	db         *sql.DB
	expiryDays int
	now        func() time.Time
}

func NewReleaseCache(db *sql.DB, expiryDays int) *ReleaseCache {
	if expiryDays <= 0 {
		expiryDays = DefaultReleaseCacheDays
	}
	return &ReleaseCache{db: db, expiryDays: expiryDays, now: time.Now}
}

func (c *ReleaseCache) expiry() time.Duration {
	return time.Duration(c.expiryDays) * 24 * time.Hour
}

// Get decodes a cached result into dst. Expired rows are deleted and
// reported as a miss.
func (c *ReleaseCache) Get(ctx context.Context, mmdd string, startYear, endYear int, dst any) (bool, error) {
	var (
		payload string
		created sql.NullString
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT results_json, created_at FROM release_cache WHERE mm_dd = ? AND start_year = ? AND end_year = ?`,
		mmdd, startYear, endYear).Scan(&payload, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if c.now().After(parseTime(created).Add(c.expiry())) {
		if err := c.Delete(ctx, mmdd, startYear, endYear); err != nil {
			logger.Warn("Could not delete expired release cache row", "mm_dd", mmdd, "error", err)
		}
		return false, nil
	}

	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		return false, fmt.Errorf("decode cached releases: %w", err)
	}
	return true, nil
}

// Save inserts or replaces the cached result for the key.
func (c *ReleaseCache) Save(ctx context.Context, mmdd string, startYear, endYear int, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO release_cache (mm_dd, start_year, end_year, results_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		mmdd, startYear, endYear, string(payload), formatTime(c.now()))
	return err
}

func (c *ReleaseCache) Delete(ctx context.Context, mmdd string, startYear, endYear int) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM release_cache WHERE mm_dd = ? AND start_year = ? AND end_year = ?`,
		mmdd, startYear, endYear)
	return err
}

// Cleanup removes every expired row and returns how many were deleted.
func (c *ReleaseCache) Cleanup(ctx context.Context) (int64, error) {
	cutoff := formatTime(c.now().Add(-c.expiry()))
	res, err := c.db.ExecContext(ctx, `DELETE FROM release_cache WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if n > 0 {
		logger.Info("Cleaned up release cache", "removed", n)
	}
	return n, err
}

func (c *ReleaseCache) Stats(ctx context.Context) (ReleaseCacheStats, error) {
	stats := ReleaseCacheStats{ExpiryDays: c.expiryDays}
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM release_cache`).Scan(&stats.TotalEntries); err != nil {
		return stats, err
	}
	recent := formatTime(c.now().Add(-7 * 24 * time.Hour))
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM release_cache WHERE created_at >= ?`, recent).Scan(&stats.RecentEntries)
	return stats, err
}
