// Package ristretto implements the cache port with an in-process
// dgraph-io/ristretto cache. VoteGuard uses it for market snapshots and
// other derived prompt context that is expensive to rebuild per validation.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const bufferItems = 64 // ristretto's recommended Get-buffer size

// Cache adapts a ristretto byte cache to the cache port.
type Cache struct {
	inner *ristretto.Cache[string, []byte]
}

// New creates a cache bounded to maxCostBytes of stored values. The counter
// space is sized at roughly ten counters per expected 1KB entry, with a
// floor so tiny test configurations still admit entries.
func New(maxCostBytes int64) (*Cache, error) {
	counters := maxCostBytes / 100
	if counters < 1000 {
		counters = 1000
	}

	inner, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: counters,
		MaxCost:     maxCostBytes,
		BufferItems: bufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner}, nil
}

// Get returns the cached value for key. ok is false on a miss; the error is
// always nil for an in-process cache but the port allows remote backends.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.inner.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores value under key for ttl, costed by its byte length. Admission
// is best-effort: ristretto may drop entries under pressure.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.inner.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

// Delete evicts key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.inner.Del(key)
	return nil
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	c.inner.Close()
}
