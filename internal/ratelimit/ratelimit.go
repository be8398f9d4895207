// Package ratelimit holds the two limits the service applies to upstream
// APIs: a daily request quota and a steady per-second pace.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/deusflow/musichub/internal/logger"
)

var ErrQuotaExceeded = errors.New("daily quota exceeded")

// DailyQuota caps how many calls a service may make per 24h window and
// tracks how often a cached answer saved a call.
type DailyQuota struct {
	mu          sync.Mutex
	name        string
	used        int
	max         int // 0 = unlimited
	resetTime   time.Time
	cacheHits   int
	cacheMisses int
	now         func() time.Time
}

func NewDailyQuota(name string, max int) *DailyQuota {
	q := &DailyQuota{name: name, max: max, now: time.Now}
	q.resetTime = q.now().Add(24 * time.Hour)
	return q
}

// Allow reports whether a call would currently fit in the quota.
func (q *DailyQuota) Allow() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.checkReset()

	if q.max > 0 && q.used >= q.max {
		logger.Warn("Rate limit reached", "service", q.name, "used", q.used, "limit", q.max)
		return false
	}
	return true
}

// Use consumes one call or returns ErrQuotaExceeded.
func (q *DailyQuota) Use() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.checkReset()

	if q.max > 0 && q.used >= q.max {
		return ErrQuotaExceeded
	}

	q.used++
	q.cacheMisses++
	logger.Debug("Quota usage", "service", q.name, "used", q.used, "limit", q.max)
	return nil
}

func (q *DailyQuota) RecordCacheHit() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cacheHits++
}

func (q *DailyQuota) cacheHitRate() float64 {
	total := q.cacheHits + q.cacheMisses
	if total == 0 {
		return 0
	}
	return float64(q.cacheHits) / float64(total) * 100
}

func (q *DailyQuota) GetStats() map[string]interface{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	return map[string]interface{}{
		q.name + "_used":           q.used,
		q.name + "_limit":          q.max,
		q.name + "_cache_hits":     q.cacheHits,
		q.name + "_cache_hit_rate": q.cacheHitRate(),
		q.name + "_reset_time":     q.resetTime.Format(time.RFC3339),
	}
}

func (q *DailyQuota) checkReset() {
	if q.now().After(q.resetTime) {
		logger.Info("Resetting quota counters", "service", q.name, "used", q.used, "cache_hits", q.cacheHits)
		q.used = 0
		q.cacheHits = 0
		q.cacheMisses = 0
		q.resetTime = q.now().Add(24 * time.Hour)
	}
}

// Pacer spaces outbound calls to at most perSecond per second.
type Pacer struct {
	limiter *rate.Limiter
}

func NewPacer(perSecond float64) *Pacer {
	if perSecond <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Wait blocks until the next call may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
