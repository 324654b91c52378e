// Package metrics provides pipeline metrics collection and reporting.
package metrics

import (
	"sync"
	"time"
)

// Metrics holds the audit pipeline's processing counters.
type Metrics struct {
	mu sync.Mutex

	// PagesFetched is the number of successful page fetches.
	PagesFetched int64
	// FetchErrors is the number of failed page fetches.
	FetchErrors int64
	// FindingsRecorded is the number of findings persisted.
	FindingsRecorded int64
	// CheckErrors is the number of checks that errored during analysis.
	CheckErrors int64
	// StartTime is when metrics collection began.
	StartTime time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	PagesFetched     int64
	FetchErrors      int64
	FindingsRecorded int64
	CheckErrors      int64
	Uptime           time.Duration
}

// New creates a Metrics instance.
func New() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// RecordPageFetched increments the successful-fetch counter.
func (m *Metrics) RecordPageFetched() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PagesFetched++
}

// RecordFetchError increments the failed-fetch counter.
func (m *Metrics) RecordFetchError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchErrors++
}

// RecordFindings adds to the findings counter.
func (m *Metrics) RecordFindings(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindingsRecorded += int64(count)
}

// RecordCheckError increments the check-error counter.
func (m *Metrics) RecordCheckError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CheckErrors++
}

// CheckErrorCount returns the current check-error count.
func (m *Metrics) CheckErrorCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CheckErrors
}

// Get returns a snapshot of all counters.
func (m *Metrics) Get() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		PagesFetched:     m.PagesFetched,
		FetchErrors:      m.FetchErrors,
		FindingsRecorded: m.FindingsRecorded,
		CheckErrors:      m.CheckErrors,
		Uptime:           time.Since(m.StartTime),
	}
}

// Reset zeroes all counters.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PagesFetched = 0
	m.FetchErrors = 0
	m.FindingsRecorded = 0
	m.CheckErrors = 0
	m.StartTime = time.Now()
}
