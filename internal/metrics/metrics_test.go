package metrics

import (
	"testing"
	"time"
)

func TestCountersAndStats(t *testing.T) {
	m := &Metrics{IsHealthy: true}
	m.IncrementFeedsFetched()
	m.IncrementFeedsFetched()
	m.AddDuplicatesFiltered(3)
	m.IncrementSMSSent()

	stats := m.GetStats()
	if stats["feeds_fetched"].(int64) != 2 {
		t.Errorf("feeds_fetched = %v", stats["feeds_fetched"])
	}
	if stats["duplicates_filtered"].(int64) != 3 {
		t.Errorf("duplicates_filtered = %v", stats["duplicates_filtered"])
	}
	if stats["sms_sent"].(int64) != 1 {
		t.Errorf("sms_sent = %v", stats["sms_sent"])
	}
}

func TestRecordAggregationTime(t *testing.T) {
	m := &Metrics{}
	m.RecordAggregationTime(100 * time.Millisecond)
	m.RecordAggregationTime(300 * time.Millisecond)

	if m.AverageAggregationTime != 200*time.Millisecond {
		t.Errorf("average = %v, want 200ms", m.AverageAggregationTime)
	}
	if m.LastAggregationTime != 300*time.Millisecond {
		t.Errorf("last = %v, want 300ms", m.LastAggregationTime)
	}
}

func TestHealthTransitions(t *testing.T) {
	m := &Metrics{IsHealthy: true}
	m.SetError("all feeds failed")
	if m.Healthy() {
		t.Error("expected unhealthy after SetError")
	}
	m.SetLastRun()
	if !m.Healthy() {
		t.Error("expected healthy after SetLastRun")
	}
}
