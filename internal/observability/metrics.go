package observability

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk-dispatch/internal/events"
)

// Metrics provides basic in-memory counters for requests, error codes and
// domain events.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	requestMillis map[string]int64
	errorCount    map[string]int64
	eventCount    map[events.EventType]int64
	startedAt     time.Time
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		requestMillis: make(map[string]int64),
		errorCount:    make(map[string]int64),
		eventCount:    make(map[events.EventType]int64),
		startedAt:     time.Now(),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestMillis[key] += duration.Milliseconds()
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// CountEvents subscribes a counter to every ticket and notification event.
func (m *Metrics) CountEvents(dispatcher events.Dispatcher) {
	if m == nil || dispatcher == nil {
		return
	}
	types := append([]events.EventType{events.EventNotificationAdded}, events.TicketEventTypes...)
	for _, t := range types {
		dispatcher.Subscribe(t, m.recordEvent)
	}
}

func (m *Metrics) recordEvent(_ context.Context, event events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCount[event.Type]++
	return nil
}

// RouteStat summarizes one path, method and status combination.
type RouteStat struct {
	Key          string  `json:"key"`
	Count        int64   `json:"count"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Requests      []RouteStat                `json:"requests"`
	Errors        map[string]int64           `json:"errors"`
	Events        map[events.EventType]int64 `json:"events"`
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		UptimeSeconds: int64(time.Since(m.startedAt).Seconds()),
		Requests:      make([]RouteStat, 0, len(m.requestCount)),
		Errors:        make(map[string]int64, len(m.errorCount)),
		Events:        make(map[events.EventType]int64, len(m.eventCount)),
	}
	for key, count := range m.requestCount {
		snap.Requests = append(snap.Requests, RouteStat{
			Key:          key,
			Count:        count,
			AvgLatencyMS: float64(m.requestMillis[key]) / float64(count),
		})
	}
	sort.Slice(snap.Requests, func(i, j int) bool { return snap.Requests[i].Key < snap.Requests[j].Key })
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	for k, v := range m.eventCount {
		snap.Events[k] = v
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
