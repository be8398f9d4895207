package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	FeedsFetched       int64
	FeedErrors         int64
	ArticlesServed     int64
	DuplicatesFiltered int64
	SummariesGenerated int64
	SummaryFailures    int64
	SMSSent            int64
	SMSFailed          int64
	TelegramSent       int64
	EmailsSent         int64
	Subscriptions      int64
	Confirmations      int64

	// Timings
	LastAggregationTime    time.Duration
	AverageAggregationTime time.Duration
	TotalAggregationTime   time.Duration
	AggregationCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) add(field *int64, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*field += n
}

func (m *Metrics) IncrementFeedsFetched()    { m.add(&m.FeedsFetched, 1) }
func (m *Metrics) IncrementFeedErrors()      { m.add(&m.FeedErrors, 1) }
func (m *Metrics) IncrementSMSSent()         { m.add(&m.SMSSent, 1) }
func (m *Metrics) IncrementSMSFailed()       { m.add(&m.SMSFailed, 1) }
func (m *Metrics) IncrementTelegramSent()    { m.add(&m.TelegramSent, 1) }
func (m *Metrics) IncrementEmailsSent()      { m.add(&m.EmailsSent, 1) }
func (m *Metrics) IncrementSubscriptions()   { m.add(&m.Subscriptions, 1) }
func (m *Metrics) IncrementConfirmations()   { m.add(&m.Confirmations, 1) }
func (m *Metrics) IncrementSummaries()       { m.add(&m.SummariesGenerated, 1) }
func (m *Metrics) IncrementSummaryFailures() { m.add(&m.SummaryFailures, 1) }

func (m *Metrics) AddArticlesServed(n int) { m.add(&m.ArticlesServed, int64(n)) }

func (m *Metrics) AddDuplicatesFiltered(n int) { m.add(&m.DuplicatesFiltered, int64(n)) }

func (m *Metrics) RecordAggregationTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastAggregationTime = duration
	m.TotalAggregationTime += duration
	m.AggregationCount++

	if m.AggregationCount > 0 {
		m.AverageAggregationTime = m.TotalAggregationTime / time.Duration(m.AggregationCount)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"feeds_fetched":               m.FeedsFetched,
		"feed_errors":                 m.FeedErrors,
		"articles_served":             m.ArticlesServed,
		"duplicates_filtered":         m.DuplicatesFiltered,
		"summaries_generated":         m.SummariesGenerated,
		"summary_failures":            m.SummaryFailures,
		"sms_sent":                    m.SMSSent,
		"sms_failed":                  m.SMSFailed,
		"telegram_messages_sent":      m.TelegramSent,
		"emails_sent":                 m.EmailsSent,
		"subscriptions":               m.Subscriptions,
		"confirmations":               m.Confirmations,
		"last_aggregation_time_ms":    m.LastAggregationTime.Milliseconds(),
		"average_aggregation_time_ms": m.AverageAggregationTime.Milliseconds(),
		"last_run_time":               m.LastRunTime.Format(time.RFC3339),
		"last_error_time":             m.LastErrorTime.Format(time.RFC3339),
		"last_error":                  m.LastError,
		"is_healthy":                  m.IsHealthy,
	}
}
