package metrics

import (
	"testing"
	"time"
)

func TestTimingMetric_RecordAndStats(t *testing.T) {
	m := newTimingMetric("test_op")
	m.Record(10 * time.Millisecond)
	m.Record(30 * time.Millisecond)
	m.Record(20 * time.Millisecond)

	stats := m.Stats()
	if stats.Count != 3 {
		t.Errorf("Count = %d, want 3", stats.Count)
	}
	if stats.TotalMs != 60 {
		t.Errorf("TotalMs = %v, want 60", stats.TotalMs)
	}
	if stats.AvgMs != 20 {
		t.Errorf("AvgMs = %v, want 20", stats.AvgMs)
	}
	if stats.MaxMs != 30 || stats.MinMs != 10 {
		t.Errorf("Max/Min = %v/%v, want 30/10", stats.MaxMs, stats.MinMs)
	}

	m.Reset()
	if m.Count() != 0 {
		t.Errorf("Count after Reset = %d", m.Count())
	}
}

func TestTimer(t *testing.T) {
	m := newTimingMetric("timed")
	done := Timer(m)
	done()
	if m.Count() != 1 {
		t.Errorf("Count = %d, want 1", m.Count())
	}
}

func TestTimingMetric_DisabledRecordsNothing(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	m := newTimingMetric("disabled")
	m.Record(time.Second)
	Timer(m)()
	if m.Count() != 0 {
		t.Errorf("Count = %d while disabled, want 0", m.Count())
	}
}

func TestCacheMetric_HitRate(t *testing.T) {
	m := newCacheMetric("test_cache")
	if rate := m.HitRate(); rate != 0 {
		t.Errorf("HitRate with no data = %v, want 0", rate)
	}

	m.Hit()
	m.Hit()
	m.Hit()
	m.Miss()
	if m.Hits() != 3 || m.Misses() != 1 {
		t.Errorf("counts = %d/%d", m.Hits(), m.Misses())
	}
	if rate := m.HitRate(); rate != 0.75 {
		t.Errorf("HitRate = %v, want 0.75", rate)
	}

	m.Reset()
	if m.Hits() != 0 || m.Misses() != 0 {
		t.Error("Reset did not clear counters")
	}
}

func TestSample_Summary(t *testing.T) {
	s := NewSample("latency")
	for _, ms := range []int{10, 20, 30, 40, 100} {
		s.Observe(time.Duration(ms) * time.Millisecond)
	}

	sum := s.Summary()
	if sum.Count != 5 {
		t.Fatalf("Count = %d, want 5", sum.Count)
	}
	if sum.MeanMs != 40 {
		t.Errorf("MeanMs = %v, want 40", sum.MeanMs)
	}
	if sum.MaxMs != 100 {
		t.Errorf("MaxMs = %v, want 100", sum.MaxMs)
	}
	if sum.P50Ms < 20 || sum.P50Ms > 40 {
		t.Errorf("P50Ms = %v, want around the median", sum.P50Ms)
	}
	if sum.P95Ms < sum.P50Ms {
		t.Errorf("P95Ms %v below P50Ms %v", sum.P95Ms, sum.P50Ms)
	}

	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len after Reset = %d", s.Len())
	}
}

func TestSample_EmptySummary(t *testing.T) {
	sum := NewSample("empty").Summary()
	if sum.Count != 0 || sum.MeanMs != 0 {
		t.Errorf("empty summary = %+v", sum)
	}
}
