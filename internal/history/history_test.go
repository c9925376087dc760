package history_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/shikko/internal/history"
)

func rec(strategyName string) history.Record {
	return history.Record{
		Strategy:   strategyName,
		OK:         true,
		StartedAt:  time.Now().UTC(),
		DurationMs: 1.5,
	}
}

func TestStore_AddAssignsID(t *testing.T) {
	s := history.NewStore(4)

	id := s.Add(rec("runbook"))

	assert.NotEqual(t, uuid.Nil, id)
	got, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, "runbook", got.Strategy)
}

func TestStore_GetUnknownID(t *testing.T) {
	s := history.NewStore(4)

	_, ok := s.Get(uuid.New())

	assert.False(t, ok)
}

func TestStore_RecentNewestFirst(t *testing.T) {
	s := history.NewStore(8)
	s.Add(rec("a"))
	s.Add(rec("b"))
	s.Add(rec("c"))

	got := s.Recent(2)

	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Strategy)
	assert.Equal(t, "b", got[1].Strategy)
}

func TestStore_RecentAllWhenNNonPositive(t *testing.T) {
	s := history.NewStore(8)
	s.Add(rec("a"))
	s.Add(rec("b"))

	assert.Len(t, s.Recent(0), 2)
	assert.Len(t, s.Recent(-1), 2)
	assert.Len(t, s.Recent(100), 2)
}

func TestStore_EvictsOldestWhenFull(t *testing.T) {
	s := history.NewStore(2)
	first := s.Add(rec("a"))
	s.Add(rec("b"))
	s.Add(rec("c"))

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, int64(1), s.Evicted())

	_, ok := s.Get(first)
	assert.False(t, ok, "oldest record should have been evicted")

	got := s.Recent(0)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Strategy)
	assert.Equal(t, "b", got[1].Strategy)
}

func TestStore_WrapKeepsIDIndexConsistent(t *testing.T) {
	s := history.NewStore(3)
	ids := make([]uuid.UUID, 0, 7)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		ids = append(ids, s.Add(rec(name)))
	}

	// Only the last three survive, each resolvable by id.
	for i, id := range ids {
		got, ok := s.Get(id)
		if i < 4 {
			assert.False(t, ok, "record %d should be gone", i)
			continue
		}
		require.True(t, ok, "record %d should be present", i)
		assert.Equal(t, string(rune('a'+i)), got.Strategy)
	}
	assert.Equal(t, int64(4), s.Evicted())
}

func TestStore_MinimumCapacityOfOne(t *testing.T) {
	s := history.NewStore(0)
	s.Add(rec("a"))
	id := s.Add(rec("b"))

	assert.Equal(t, 1, s.Len())
	got, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, "b", got.Strategy)
}
