package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Buckets idle longer than idleEviction are dropped by the sweep goroutine,
// which wakes every sweepInterval. An evicted key starts over with a full
// bucket on its next request.
const (
	idleEviction  = 10 * time.Minute
	sweepInterval = time.Minute
)

// bucket tracks the remaining tokens for one key. Refill is computed lazily
// from the time of the previous request, so an idle bucket costs nothing.
type bucket struct {
	tokens float64
	seen   time.Time
}

// MemoryLimiter is a per-key token bucket held entirely in process memory.
// Keys are whatever the caller identifies clients by — the server feeds it
// "agent:planner" or "ip:10.0.0.7" style keys — and each key refills at rate
// tokens per second up to a burst-sized cap. Not shared across processes.
type MemoryLimiter struct {
	rate  float64
	burst float64

	mu      sync.Mutex
	buckets map[string]*bucket

	closeOnce sync.Once
	done      chan struct{}
}

// NewMemoryLimiter creates a limiter sustaining rate requests per second per
// key with bursts up to burst. It starts a sweep goroutine for idle keys;
// Close stops it.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	m := &MemoryLimiter{
		rate:    rate,
		burst:   float64(burst),
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Allow takes one token for key, reporting whether one was available. A key
// it has never seen gets a full bucket, so the first request always passes.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	b, ok := m.buckets[key]
	if !ok {
		m.buckets[key] = &bucket{tokens: m.burst - 1, seen: now}
		return true, nil
	}

	b.tokens += now.Sub(b.seen).Seconds() * m.rate
	if b.tokens > m.burst {
		b.tokens = m.burst
	}
	b.seen = now

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// Close stops the sweep goroutine. Idempotent.
func (m *MemoryLimiter) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

// sweep drops buckets whose last request is older than idleEviction.
func (m *MemoryLimiter) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-idleEviction)
	for key, b := range m.buckets {
		if b.seen.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}
