package main

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Stats accumulates results for one endpoint.
type Stats struct {
	total   atomic.Int64
	success atomic.Int64
	errors  atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 1024),
		codes:     make(map[int]int64),
	}
}

// Record counts one request. A transport error has no status code and no
// latency sample.
func (s *Stats) Record(d time.Duration, status int, err error) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
	} else {
		s.errors.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[status]++
	s.mu.Unlock()
}

// Summary is a point-in-time digest of Stats.
type Summary struct {
	Total   int64
	Success int64
	Errors  int64

	Min    time.Duration
	Avg    time.Duration
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Max    time.Duration
	StdDev time.Duration

	Codes map[int]int64
}

func (s *Stats) Summary() Summary {
	s.mu.Lock()
	lat := slices.Clone(s.latencies)
	codes := make(map[int]int64, len(s.codes))
	for k, v := range s.codes {
		codes[k] = v
	}
	s.mu.Unlock()

	out := Summary{
		Total:   s.total.Load(),
		Success: s.success.Load(),
		Errors:  s.errors.Load(),
		Codes:   codes,
	}
	if len(lat) == 0 {
		return out
	}
	slices.Sort(lat)
	var sum time.Duration
	for _, l := range lat {
		sum += l
	}
	out.Avg = sum / time.Duration(len(lat))
	out.Min = lat[0]
	out.Max = lat[len(lat)-1]
	out.P50 = percentile(lat, 50)
	out.P95 = percentile(lat, 95)
	out.P99 = percentile(lat, 99)

	var sq float64
	for _, l := range lat {
		diff := float64(l - out.Avg)
		sq += diff * diff
	}
	out.StdDev = time.Duration(math.Sqrt(sq / float64(len(lat))))
	return out
}

// percentile uses the nearest-rank method on sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
