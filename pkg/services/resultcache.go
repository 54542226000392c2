package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/13102180531/ExcelQuery/pkg/apperrors"
	"github.com/13102180531/ExcelQuery/pkg/config"
	"github.com/13102180531/ExcelQuery/pkg/dataset"
)

// CachedResult is a filtered dataset parked for later download.
type CachedResult struct {
	Dataset    *dataset.Dataset
	FileStem   string // stem of the source file, used in the download name
	Unfiltered bool   // true when the expression matched everything
	CreatedAt  time.Time
}

// ResultCache holds query results for a bounded time so the download
// endpoint does not have to re-run the query. Use this interface for
// dependency injection and testing.
type ResultCache interface {
	// Put stores a result and returns its download id.
	Put(result CachedResult) string

	// Get returns a live result. Expired entries are purged on read and
	// reported as not found.
	Get(id string) (*CachedResult, error)

	// Start launches the periodic sweeper; it stops when ctx is done.
	Start(ctx context.Context)
}

type resultCache struct {
	ttl           time.Duration
	sweepInterval time.Duration
	clock         func() time.Time
	logger        *zap.Logger

	mu      sync.Mutex
	entries map[string]CachedResult
}

var _ ResultCache = (*resultCache)(nil)

// NewResultCache creates the result cache.
func NewResultCache(cfg config.ResultsConfig, logger *zap.Logger) ResultCache {
	return &resultCache{
		ttl:           time.Duration(cfg.TTLSeconds) * time.Second,
		sweepInterval: time.Duration(cfg.SweepIntervalSeconds) * time.Second,
		clock:         time.Now,
		logger:        logger.Named("results"),
		entries:       make(map[string]CachedResult),
	}
}

// Put stores a result under a fresh id.
func (c *resultCache) Put(result CachedResult) string {
	id := uuid.NewString()
	result.CreatedAt = c.clock()

	c.mu.Lock()
	c.entries[id] = result
	c.mu.Unlock()

	c.logger.Debug("Cached query result",
		zap.String("result_id", id),
		zap.Int("rows", result.Dataset.NumRows()))
	return id
}

// Get returns the result for id, deleting it first if the TTL has lapsed.
func (c *resultCache) Get(id string) (*CachedResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: result %s", apperrors.ErrNotFound, id)
	}
	if c.clock().Sub(entry.CreatedAt) > c.ttl {
		delete(c.entries, id)
		return nil, fmt.Errorf("%w: result %s expired", apperrors.ErrNotFound, id)
	}
	return &entry, nil
}

// Start runs the sweeper until ctx is cancelled.
func (c *resultCache) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

// sweep purges every expired entry.
func (c *resultCache) sweep() {
	now := c.clock()

	c.mu.Lock()
	purged := 0
	for id, entry := range c.entries {
		if now.Sub(entry.CreatedAt) > c.ttl {
			delete(c.entries, id)
			purged++
		}
	}
	remaining := len(c.entries)
	c.mu.Unlock()

	if purged > 0 {
		c.logger.Info("Swept expired query results",
			zap.Int("purged", purged),
			zap.Int("remaining", remaining))
	}
}
