package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"marketdash/internal/market"
)

// Listing is a short-TTL cache for bulk listing pages. It exists only to
// absorb bursts of concurrent client polls against the listing upstream;
// misses are always acceptable.
type Listing interface {
	Get(ctx context.Context, key string) ([]market.AssetRecord, bool)
	Set(ctx context.Context, key string, records []market.AssetRecord)
}

// Key builds the cache key for one listing request.
func Key(page, perPage int, ids []string) string {
	return fmt.Sprintf("listing:%d:%d:%s", page, perPage, strings.Join(ids, ","))
}

type entry struct {
	expiresAt time.Time
	records   []market.AssetRecord
}

// Memory caches listing pages in process for a TTL.
type Memory struct {
	TTL        time.Duration
	MaxEntries int

	mu    sync.RWMutex
	items map[string]entry
}

func (c *Memory) Get(_ context.Context, key string) ([]market.AssetRecord, bool) {
	if c.TTL <= 0 {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.records, true
}

func (c *Memory) Set(_ context.Context, key string, records []market.AssetRecord) {
	if c.TTL <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[key] = entry{expiresAt: time.Now().Add(c.TTL), records: records}

	// best-effort cap: drop expired entries first, then arbitrary ones
	if c.MaxEntries > 0 && len(c.items) > c.MaxEntries {
		now := time.Now()
		for k, v := range c.items {
			if now.After(v.expiresAt) {
				delete(c.items, k)
			}
			if len(c.items) <= c.MaxEntries {
				break
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxEntries {
				break
			}
			delete(c.items, k)
		}
	}
}
