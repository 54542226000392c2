package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/13102180531/ExcelQuery/pkg/apperrors"
	"github.com/13102180531/ExcelQuery/pkg/config"
	"github.com/13102180531/ExcelQuery/pkg/dataset"
)

func testCacheDataset() *dataset.Dataset {
	return dataset.New("r.csv", []string{"a"}, [][]any{{"x"}})
}

func newTestCache(t *testing.T, ttlSeconds int) (*resultCache, *time.Time) {
	t.Helper()
	c := NewResultCache(config.ResultsConfig{
		TTLSeconds:           ttlSeconds,
		SweepIntervalSeconds: 300,
	}, zap.NewNop()).(*resultCache)

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	c.clock = func() time.Time { return now }
	return c, &now
}

func TestResultCachePutGet(t *testing.T) {
	c, _ := newTestCache(t, 3600)

	id := c.Put(CachedResult{Dataset: testCacheDataset(), FileStem: "r"})
	require.NotEmpty(t, id)

	entry, err := c.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "r", entry.FileStem)
	assert.Equal(t, 1, entry.Dataset.NumRows())
}

func TestResultCacheUnknownID(t *testing.T) {
	c, _ := newTestCache(t, 3600)

	_, err := c.Get("no-such-id")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestResultCacheExpiresOnRead(t *testing.T) {
	c, now := newTestCache(t, 3600)

	id := c.Put(CachedResult{Dataset: testCacheDataset()})
	*now = now.Add(time.Hour + time.Second)

	_, err := c.Get(id)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	// The expired entry is gone, not just hidden.
	c.mu.Lock()
	_, still := c.entries[id]
	c.mu.Unlock()
	assert.False(t, still)
}

func TestResultCacheSweep(t *testing.T) {
	c, now := newTestCache(t, 3600)

	old := c.Put(CachedResult{Dataset: testCacheDataset()})
	*now = now.Add(30 * time.Minute)
	fresh := c.Put(CachedResult{Dataset: testCacheDataset()})

	*now = now.Add(45 * time.Minute)
	c.sweep()

	_, err := c.Get(old)
	assert.Error(t, err)
	_, err = c.Get(fresh)
	assert.NoError(t, err)
}
