package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/shikko/internal/ratelimit"
)

func newLimiter(t *testing.T, rate float64, burst int) *ratelimit.MemoryLimiter {
	t.Helper()
	m := ratelimit.NewMemoryLimiter(rate, burst)
	t.Cleanup(func() { require.NoError(t, m.Close()) })
	return m
}

func TestAllow_PermitsUpToBurst(t *testing.T) {
	m := newLimiter(t, 1, 3)

	for i := 0; i < 3; i++ {
		ok, err := m.Allow(context.Background(), "agent:planner-1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d should fit in the burst", i+1)
	}
}

func TestAllow_DeniesWhenBurstExhausted(t *testing.T) {
	m := newLimiter(t, 1, 2)

	for i := 0; i < 2; i++ {
		ok, err := m.Allow(context.Background(), "ip:10.0.0.7")
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := m.Allow(context.Background(), "ip:10.0.0.7")
	require.NoError(t, err)
	assert.False(t, ok, "third request exceeds the burst")
}

func TestAllow_RefillsOverTime(t *testing.T) {
	// High rate so the test only needs to sleep a few milliseconds.
	m := newLimiter(t, 1000, 2)

	for i := 0; i < 2; i++ {
		ok, _ := m.Allow(context.Background(), "agent:executor")
		require.True(t, ok)
	}
	ok, err := m.Allow(context.Background(), "agent:executor")
	require.NoError(t, err)
	require.False(t, ok)

	time.Sleep(5 * time.Millisecond)

	ok, err = m.Allow(context.Background(), "agent:executor")
	require.NoError(t, err)
	assert.True(t, ok, "tokens refill while the key is idle")
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	m := newLimiter(t, 1, 1)

	ok, _ := m.Allow(context.Background(), "agent:planner-1")
	require.True(t, ok)
	ok, _ = m.Allow(context.Background(), "agent:planner-1")
	require.False(t, ok, "planner-1 spent its bucket")

	ok, err := m.Allow(context.Background(), "agent:planner-2")
	require.NoError(t, err)
	assert.True(t, ok, "planner-2 has its own bucket")
}

func TestAllow_ConcurrentSharedKey(t *testing.T) {
	const (
		goroutines = 10
		perG       = 10
		burst      = 5
	)
	m := newLimiter(t, 0.001, burst)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				ok, err := m.Allow(context.Background(), "ip:10.0.0.7")
				assert.NoError(t, err)
				if ok {
					allowed.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	// Near-zero refill rate: exactly the burst gets through.
	assert.Equal(t, int64(burst), allowed.Load())
}

func TestClose_Idempotent(t *testing.T) {
	m := ratelimit.NewMemoryLimiter(1, 1)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestNoopLimiter_AlwaysAllows(t *testing.T) {
	var m ratelimit.NoopLimiter

	for i := 0; i < 100; i++ {
		ok, err := m.Allow(context.Background(), "ip:10.0.0.7")
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.NoError(t, m.Close())
}
