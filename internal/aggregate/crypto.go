package aggregate

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"marketdash/internal/cache"
	"marketdash/internal/market"
	"marketdash/internal/ratelimit"
)

// ListingClient is the slice of the market-list upstream the crypto
// aggregator needs.
type ListingClient interface {
	Markets(ctx context.Context, page, perPage int, ids []string) ([]market.AssetRecord, error)
}

// Crypto serves the bulk coin listing. It delegates almost entirely to the
// listing upstream; its own job is burst absorption (cache + singleflight)
// and keeping upstream ordering intact.
type Crypto struct {
	client ListingClient
	cache  cache.Listing
	gate   ratelimit.Gate
	sf     singleflight.Group
}

type CryptoOption func(*Crypto)

// WithCache puts a short-TTL listing cache in front of the upstream.
func WithCache(c cache.Listing) CryptoOption {
	return func(a *Crypto) { a.cache = c }
}

// WithGate rate-limits upstream calls.
func WithGate(g ratelimit.Gate) CryptoOption {
	return func(a *Crypto) { a.gate = g }
}

func NewCrypto(client ListingClient, opts ...CryptoOption) *Crypto {
	a := &Crypto{client: client}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fetch returns one listing page in upstream (market-cap) order. Identical
// concurrent requests are coalesced into a single upstream call. The caller
// detects the last page by comparing len(result) against perPage.
//
// There is no per-item fallback table for the open-ended coin set; a failed
// fetch surfaces as an error and the endpoint maps it to success=false with
// empty data.
func (a *Crypto) Fetch(ctx context.Context, page, perPage int, ids []string) ([]market.AssetRecord, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 100
	}

	key := cache.Key(page, perPage, ids)
	if a.cache != nil {
		if records, ok := a.cache.Get(ctx, key); ok {
			return records, nil
		}
	}

	v, err, _ := a.sf.Do(key, func() (any, error) {
		if a.gate != nil {
			if err := a.gate.Wait(ctx); err != nil {
				return nil, err
			}
		}
		records, err := a.client.Markets(ctx, page, perPage, ids)
		if err != nil {
			return nil, err
		}
		if a.cache != nil {
			a.cache.Set(ctx, key, records)
		}
		return records, nil
	})
	if err != nil {
		slog.Warn("crypto listing fetch failed", "page", page, "per_page", perPage, "err", err)
		return nil, err
	}
	return v.([]market.AssetRecord), nil
}
