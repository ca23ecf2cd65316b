package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters keyed by route, method and outcome.
type Metrics struct {
	mu           sync.Mutex
	started      time.Time
	requestCount map[string]int64
	errorCount   map[string]int64
	eventCount   map[string]int64
	latency      map[string]time.Duration
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		started:      time.Now(),
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		eventCount:   make(map[string]int64),
		latency:      make(map[string]time.Duration),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := route + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.latency[key] += duration
}

// RecordError increments error counters by domain error code.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	key := route + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordEvent counts a published domain event.
func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCount[eventType]++
}

// Counter is one exported series.
type Counter struct {
	Key   string  `json:"key"`
	Count int64   `json:"count"`
	AvgMs float64 `json:"avgMs,omitempty"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	UptimeSeconds int64     `json:"uptimeSeconds"`
	Requests      []Counter `json:"requests"`
	Errors        []Counter `json:"errors"`
	Events        []Counter `json:"events"`
}

// Snapshot copies the counters, sorted by key.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	requests := make([]Counter, 0, len(m.requestCount))
	for key, count := range m.requestCount {
		c := Counter{Key: key, Count: count}
		if count > 0 {
			c.AvgMs = float64(m.latency[key].Microseconds()) / 1000 / float64(count)
		}
		requests = append(requests, c)
	}
	return Snapshot{
		UptimeSeconds: int64(time.Since(m.started).Seconds()),
		Requests:      sortCounters(requests),
		Errors:        sortCounters(toCounters(m.errorCount)),
		Events:        sortCounters(toCounters(m.eventCount)),
	}
}

func toCounters(src map[string]int64) []Counter {
	out := make([]Counter, 0, len(src))
	for key, count := range src {
		out = append(out, Counter{Key: key, Count: count})
	}
	return out
}

func sortCounters(c []Counter) []Counter {
	sort.Slice(c, func(i, j int) bool { return c[i].Key < c[j].Key })
	return c
}
