package metrics

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Sample collects individual duration observations so a run can report
// distribution statistics, not just totals. Used for per-iteration
// scroll latency, where the mean alone hides the long render stalls
// that dominate wall time.
type Sample struct {
	mu     sync.Mutex
	name   string
	values []float64 // milliseconds
}

// NewSample creates a named duration sample.
func NewSample(name string) *Sample {
	return &Sample{name: name}
}

// Observe records one duration.
func (s *Sample) Observe(d time.Duration) {
	if !enabled {
		return
	}
	s.mu.Lock()
	s.values = append(s.values, float64(d.Nanoseconds())/1e6)
	s.mu.Unlock()
}

// Len returns the number of observations.
func (s *Sample) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// SampleSummary is a distribution snapshot of a Sample.
type SampleSummary struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	StdMs  float64 `json:"std_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	MaxMs  float64 `json:"max_ms"`
}

// Summary computes distribution statistics over the observations.
func (s *Sample) Summary() SampleSummary {
	s.mu.Lock()
	values := append([]float64(nil), s.values...)
	s.mu.Unlock()

	out := SampleSummary{Name: s.name, Count: len(values)}
	if len(values) == 0 {
		return out
	}

	sort.Float64s(values)
	out.MeanMs = stat.Mean(values, nil)
	out.StdMs = stat.StdDev(values, nil)
	out.P50Ms = stat.Quantile(0.5, stat.Empirical, values, nil)
	out.P95Ms = stat.Quantile(0.95, stat.Empirical, values, nil)
	out.MaxMs = values[len(values)-1]
	return out
}

// Reset discards all observations.
func (s *Sample) Reset() {
	s.mu.Lock()
	s.values = s.values[:0]
	s.mu.Unlock()
}

// ScrollLatency samples the wall time of each scroll-and-extract
// iteration across the whole run.
var ScrollLatency = NewSample("scroll_latency")
