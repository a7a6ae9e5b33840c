package aggregate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"marketdash/internal/cache"
	"marketdash/internal/market"
)

type fakeListing struct {
	calls   atomic.Int64
	records []market.AssetRecord
	err     error
}

func (f *fakeListing) Markets(_ context.Context, page, perPage int, ids []string) ([]market.AssetRecord, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func TestCrypto_PassThroughKeepsOrder(t *testing.T) {
	listing := &fakeListing{records: []market.AssetRecord{
		{ID: "bitcoin", MarketCapRank: 1},
		{ID: "ethereum", MarketCapRank: 2},
		{ID: "solana", MarketCapRank: 5},
	}}
	a := NewCrypto(listing)

	out, err := a.Fetch(context.Background(), 1, 100, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 || out[0].ID != "bitcoin" || out[2].ID != "solana" {
		t.Fatalf("order not preserved: %+v", out)
	}
}

func TestCrypto_ErrorSurfacesToCaller(t *testing.T) {
	listing := &fakeListing{err: errors.New("rate limited")}
	a := NewCrypto(listing)

	out, err := a.Fetch(context.Background(), 1, 100, nil)
	if err == nil {
		t.Fatal("want error when upstream and cache both fail")
	}
	if len(out) != 0 {
		t.Fatalf("want empty result on failure, got %+v", out)
	}
}

func TestCrypto_CacheAbsorbsRepeatFetches(t *testing.T) {
	listing := &fakeListing{records: []market.AssetRecord{{ID: "bitcoin"}}}
	a := NewCrypto(listing, WithCache(&cache.Memory{TTL: time.Minute}))

	for i := 0; i < 5; i++ {
		if _, err := a.Fetch(context.Background(), 1, 100, nil); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}
	if n := listing.calls.Load(); n != 1 {
		t.Fatalf("want 1 upstream call, got %d", n)
	}
}

func TestCrypto_CacheKeyedByRequestShape(t *testing.T) {
	listing := &fakeListing{records: []market.AssetRecord{{ID: "bitcoin"}}}
	a := NewCrypto(listing, WithCache(&cache.Memory{TTL: time.Minute}))

	a.Fetch(context.Background(), 1, 100, nil)
	a.Fetch(context.Background(), 2, 100, nil)
	a.Fetch(context.Background(), 1, 100, []string{"bitcoin"})

	if n := listing.calls.Load(); n != 3 {
		t.Fatalf("want 3 upstream calls for 3 distinct shapes, got %d", n)
	}
}

func TestCrypto_FailureIsNotCached(t *testing.T) {
	listing := &fakeListing{err: errors.New("down")}
	a := NewCrypto(listing, WithCache(&cache.Memory{TTL: time.Minute}))

	a.Fetch(context.Background(), 1, 100, nil)
	listing.err = nil
	listing.records = []market.AssetRecord{{ID: "bitcoin"}}

	out, err := a.Fetch(context.Background(), 1, 100, nil)
	if err != nil || len(out) != 1 {
		t.Fatalf("recovery fetch failed: %v %+v", err, out)
	}
}
