package storage

import (
	"testing"
	"time"
)

// TestMetricsCounters tests the atomic counters and hit rate
func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordPageEviction()
	m.RecordDirtyPageFlush()
	m.RecordPageAllocation()
	m.RecordPageDeletion()

	if m.GetCacheHits() != 3 {
		t.Errorf("Expected 3 hits, got %d", m.GetCacheHits())
	}
	if m.GetCacheMisses() != 1 {
		t.Errorf("Expected 1 miss, got %d", m.GetCacheMisses())
	}
	if m.GetCacheHitRate() != 0.75 {
		t.Errorf("Expected hit rate 0.75, got %f", m.GetCacheHitRate())
	}
	if m.GetPageEvictions() != 1 || m.GetDirtyPageFlushes() != 1 {
		t.Error("Eviction/flush counters wrong")
	}
	if m.GetPagesAllocated() != 1 || m.GetPagesDeleted() != 1 {
		t.Error("Allocation/deletion counters wrong")
	}
}

// TestMetricsHitRateEmpty tests the zero-sample hit rate
func TestMetricsHitRateEmpty(t *testing.T) {
	m := NewMetrics()
	if m.GetCacheHitRate() != 0.0 {
		t.Errorf("Expected 0.0 hit rate with no samples, got %f", m.GetCacheHitRate())
	}
}

// TestMetricsReset tests that reset clears everything
func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordCacheHit()
	m.RecordPageFetchLatency(5 * time.Millisecond)

	m.Reset()

	if m.GetCacheHits() != 0 {
		t.Errorf("Expected 0 hits after reset, got %d", m.GetCacheHits())
	}
	if m.GetPageFetchLatency().Count != 0 {
		t.Error("Expected empty fetch histogram after reset")
	}
}

// TestHistogramPercentiles tests percentile interpolation
func TestHistogramPercentiles(t *testing.T) {
	h := NewHistogram(100)
	for i := 1; i <= 100; i++ {
		h.Record(float64(i))
	}

	if h.Count() != 100 {
		t.Errorf("Expected 100 samples, got %d", h.Count())
	}
	if p50 := h.Percentile(50); p50 < 50 || p50 > 51 {
		t.Errorf("Expected p50 near 50, got %f", p50)
	}
	if p99 := h.Percentile(99); p99 < 99 || p99 > 100 {
		t.Errorf("Expected p99 near 99, got %f", p99)
	}
	if h.Min() != 1 {
		t.Errorf("Expected min 1, got %f", h.Min())
	}
	if h.Max() != 100 {
		t.Errorf("Expected max 100, got %f", h.Max())
	}
	if mean := h.Mean(); mean < 50 || mean > 51 {
		t.Errorf("Expected mean near 50.5, got %f", mean)
	}
}

// TestHistogramEviction tests that the sample window stays bounded
func TestHistogramEviction(t *testing.T) {
	h := NewHistogram(10)
	for i := 0; i < 25; i++ {
		h.Record(float64(i))
	}

	if h.Count() != 10 {
		t.Errorf("Expected 10 retained samples, got %d", h.Count())
	}
	// Oldest samples were dropped
	if h.Min() != 15 {
		t.Errorf("Expected min 15 after eviction, got %f", h.Min())
	}
}

// TestHistogramEmpty tests empty-histogram behavior
func TestHistogramEmpty(t *testing.T) {
	h := NewHistogram(10)
	if h.Percentile(50) != 0 || h.Mean() != 0 || h.Min() != 0 || h.Max() != 0 {
		t.Error("Empty histogram should report zeros")
	}

	snapshot := h.Snapshot()
	if snapshot.Count != 0 {
		t.Errorf("Expected empty snapshot, got count %d", snapshot.Count)
	}
}
