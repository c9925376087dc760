// Package history keeps an in-memory record of recent strategy runs.
//
// The store is a fixed-capacity ring: once full, each new run evicts the
// oldest. It exists so operators and agents can inspect what the server
// executed recently without shikko growing a persistence layer.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/shikko/internal/telemetry"
	"github.com/ashita-ai/shikko/trace"
)

// Record is one completed run as seen by the history store.
type Record struct {
	ID         uuid.UUID   `json:"id"`
	Strategy   string      `json:"strategy"`
	Version    string      `json:"version,omitempty"`
	OK         bool        `json:"ok"`
	Code       string      `json:"code,omitempty"`
	Agent      string      `json:"agent,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	DurationMs float64     `json:"duration_ms"`
	Trace      *trace.Data `json:"-"`
}

// Store is a fixed-capacity ring buffer of run records.
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	capacity int
	records  []Record // ring storage, len <= capacity
	next     int      // write position once the ring is full
	byID     map[uuid.UUID]int

	evicted int64 // total records evicted since start
}

// NewStore creates a history store holding at most capacity records.
// A non-positive capacity gets a minimum of 1 so Add never has to fail.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{
		capacity: capacity,
		records:  make([]Record, 0, capacity),
		byID:     make(map[uuid.UUID]int, capacity),
	}
}

// Add records a completed run, evicting the oldest record when full.
// A zero record ID gets one assigned; the final ID is returned.
func (s *Store) Add(rec Record) uuid.UUID {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) < s.capacity {
		s.byID[rec.ID] = len(s.records)
		s.records = append(s.records, rec)
		return rec.ID
	}

	old := s.records[s.next]
	delete(s.byID, old.ID)
	s.evicted++

	s.records[s.next] = rec
	s.byID[rec.ID] = s.next
	s.next = (s.next + 1) % s.capacity
	return rec.ID
}

// Get returns the record with the given id.
func (s *Store) Get(id uuid.UUID) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return Record{}, false
	}
	return s.records[idx], true
}

// Recent returns up to n records, newest first. n <= 0 means all.
func (s *Store) Recent(n int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.records)
	if n <= 0 || n > total {
		n = total
	}
	out := make([]Record, 0, n)
	// Newest is the slot just before the write position once the ring has
	// wrapped; before that, it is simply the last appended element.
	newest := total - 1
	if total == s.capacity {
		newest = (s.next - 1 + s.capacity) % s.capacity
	}
	for i := 0; i < n; i++ {
		out = append(out, s.records[(newest-i+total)%total])
	}
	return out
}

// Len returns the current number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Evicted returns the total number of records evicted since start.
func (s *Store) Evicted() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evicted
}

// RegisterMetrics registers observable OTEL gauges for history health.
// Call after the global meter provider has been initialized.
func (s *Store) RegisterMetrics() {
	meter := telemetry.Meter("shikko/history")

	_, _ = meter.Int64ObservableGauge("shikko.history.depth",
		metric.WithDescription("Current number of runs held in history"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(s.Len()))
			return nil
		}),
	)

	_, _ = meter.Int64ObservableGauge("shikko.history.evicted_total",
		metric.WithDescription("Total runs evicted from history since start"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(s.Evicted())
			return nil
		}),
	)
}
