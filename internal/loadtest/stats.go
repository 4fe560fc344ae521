package loadtest

import (
	"sort"
	"sync"
	"time"
)

// currentRPSWindow is the number of trailing seconds averaged by CurrentRPS
const currentRPSWindow = 10

// TotalName is the name of the aggregated entry across all endpoints
const TotalName = "Aggregated"

// StatsEntry holds statistics for one (method, name) pair
type StatsEntry struct {
	Method             string
	Name               string
	NumRequests        int
	NumFailures        int
	TotalResponseMs    int64
	MinResponseMs      int64
	MaxResponseMs      int64
	TotalContentLength int64
	ResponseTimes      []int64 // For percentile calculation
	FirstRequestAt     time.Time
	LastRequestAt      time.Time

	rps map[int64]int // Unix second -> requests completed in that second
}

func newStatsEntry(method, name string) *StatsEntry {
	return &StatsEntry{
		Method:        method,
		Name:          name,
		MinResponseMs: -1,
		MaxResponseMs: -1,
		ResponseTimes: make([]int64, 0, 256),
		rps:           make(map[int64]int),
	}
}

// log adds one request to the entry
func (s *StatsEntry) log(ev RequestEvent) {
	ms := ev.ResponseTime.Milliseconds()
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	s.NumRequests++
	if ev.Err != nil {
		s.NumFailures++
	}
	s.TotalResponseMs += ms
	s.TotalContentLength += ev.ResponseLength
	s.ResponseTimes = append(s.ResponseTimes, ms)

	if s.MinResponseMs == -1 || ms < s.MinResponseMs {
		s.MinResponseMs = ms
	}
	if s.MaxResponseMs == -1 || ms > s.MaxResponseMs {
		s.MaxResponseMs = ms
	}

	if s.FirstRequestAt.IsZero() || ts.Before(s.FirstRequestAt) {
		s.FirstRequestAt = ts
	}
	if ts.After(s.LastRequestAt) {
		s.LastRequestAt = ts
	}

	sec := ts.Unix()
	s.rps[sec]++
	if len(s.rps) > 2*currentRPSWindow {
		for k := range s.rps {
			if k <= sec-currentRPSWindow {
				delete(s.rps, k)
			}
		}
	}
}

// clone returns a deep copy safe to read without the aggregator lock
func (s *StatsEntry) clone() StatsEntry {
	c := *s
	c.ResponseTimes = make([]int64, len(s.ResponseTimes))
	copy(c.ResponseTimes, s.ResponseTimes)
	c.rps = make(map[int64]int, len(s.rps))
	for k, v := range s.rps {
		c.rps[k] = v
	}
	return c
}

// AvgResponseMs returns the average response time in milliseconds
func (s *StatsEntry) AvgResponseMs() float64 {
	if s.NumRequests == 0 {
		return 0
	}
	return float64(s.TotalResponseMs) / float64(s.NumRequests)
}

// Min returns the minimum response time, or 0 if no results
func (s *StatsEntry) Min() int64 {
	if s.MinResponseMs == -1 {
		return 0
	}
	return s.MinResponseMs
}

// Max returns the maximum response time, or 0 if no results
func (s *StatsEntry) Max() int64 {
	if s.MaxResponseMs == -1 {
		return 0
	}
	return s.MaxResponseMs
}

// Percentile calculates the percentile value (p should be between 0 and 100)
func (s *StatsEntry) Percentile(p float64) int64 {
	if len(s.ResponseTimes) == 0 {
		return 0
	}

	sorted := make([]int64, len(s.ResponseTimes))
	copy(sorted, s.ResponseTimes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	// Linear interpolation between lower and upper
	weight := index - float64(lower)
	return int64(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}

// P50 returns the 50th percentile (median)
func (s *StatsEntry) P50() int64 {
	return s.Percentile(50)
}

// P95 returns the 95th percentile
func (s *StatsEntry) P95() int64 {
	return s.Percentile(95)
}

// P99 returns the 99th percentile
func (s *StatsEntry) P99() int64 {
	return s.Percentile(99)
}

// FailRatio returns failures over requests
func (s *StatsEntry) FailRatio() float64 {
	if s.NumRequests == 0 {
		return 0
	}
	return float64(s.NumFailures) / float64(s.NumRequests)
}

// CurrentRPS averages requests per second over the trailing window ending at now.
// The window is shortened when the first request is more recent than the window.
func (s *StatsEntry) CurrentRPS(now time.Time) float64 {
	if s.NumRequests == 0 {
		return 0
	}

	end := now.Unix()
	start := end - currentRPSWindow + 1
	if first := s.FirstRequestAt.Unix(); first > start {
		start = first
	}
	if start > end {
		return 0
	}

	count := 0
	for sec := start; sec <= end; sec++ {
		count += s.rps[sec]
	}
	return float64(count) / float64(end-start+1)
}

type statsKey struct {
	method string
	name   string
}

// Stats is the run-wide aggregator. All methods are safe for concurrent use.
type Stats struct {
	mu      sync.Mutex
	entries map[statsKey]*StatsEntry
	total   *StatsEntry
}

// NewStats creates an empty aggregator
func NewStats() *Stats {
	return &Stats{
		entries: make(map[statsKey]*StatsEntry),
		total:   newStatsEntry("", TotalName),
	}
}

// Record adds a request to its endpoint entry and to the total
func (s *Stats) Record(ev RequestEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := statsKey{method: ev.Method, name: ev.Name}
	entry, ok := s.entries[key]
	if !ok {
		entry = newStatsEntry(ev.Method, ev.Name)
		s.entries[key] = entry
	}
	entry.log(ev)
	s.total.log(ev)
}

// Total returns a snapshot of the aggregated entry
func (s *Stats) Total() StatsEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total.clone()
}

// Entry returns a snapshot of one endpoint entry
func (s *Stats) Entry(method, name string) (StatsEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[statsKey{method: method, name: name}]
	if !ok {
		return StatsEntry{}, false
	}
	return entry.clone(), true
}

// Entries returns snapshots of every endpoint entry sorted by name then method
func (s *Stats) Entries() []StatsEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]StatsEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Reset clears all entries
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[statsKey]*StatsEntry)
	s.total = newStatsEntry("", TotalName)
}
