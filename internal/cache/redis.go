package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"marketdash/internal/market"
)

// Redis caches listing pages in a shared Redis so multiple instances poll
// the upstream once per TTL between them. Failures degrade to a cache miss.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedis(addr, password string, db int, ttl time.Duration) *Redis {
	return &Redis{
		Client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		TTL:    ttl,
	}
}

func (c *Redis) Get(ctx context.Context, key string) ([]market.AssetRecord, bool) {
	if c.Client == nil || c.TTL <= 0 {
		return nil, false
	}
	b, err := c.Client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("redis get failed", "key", key, "err", err)
		}
		return nil, false
	}
	var records []market.AssetRecord
	if err := json.Unmarshal(b, &records); err != nil {
		slog.Warn("redis cache entry corrupt", "key", key, "err", err)
		return nil, false
	}
	return records, true
}

func (c *Redis) Set(ctx context.Context, key string, records []market.AssetRecord) {
	if c.Client == nil || c.TTL <= 0 {
		return
	}
	b, err := json.Marshal(records)
	if err != nil {
		return
	}
	if err := c.Client.Set(ctx, key, b, c.TTL).Err(); err != nil {
		slog.Warn("redis set failed", "key", key, "err", err)
	}
}
