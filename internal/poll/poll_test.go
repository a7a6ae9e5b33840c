package poll

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"marketdash/internal/market"
)

// fakeService simulates the pricing endpoints with switchable failure modes.
type fakeService struct {
	cryptoFail atomic.Bool
	forexFail  atomic.Bool
	// coins is the full listing; pages are sliced out of it
	coins []market.AssetRecord
}

func record(id string, rank int) market.AssetRecord {
	return market.AssetRecord{ID: id, Symbol: id[:3], MarketCapRank: rank, CurrentPrice: float64(rank) * 100}
}

func coinSet(n int) []market.AssetRecord {
	out := make([]market.AssetRecord, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, record(fmt.Sprintf("coin-%03d", i), i))
	}
	return out
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/prices/crypto", func(w http.ResponseWriter, r *http.Request) {
		if f.cryptoFail.Load() {
			json.NewEncoder(w).Encode(market.Envelope{Success: false, Data: []market.AssetRecord{}, Error: "down"})
			return
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		if page <= 0 {
			page = 1
		}
		lo := (page - 1) * perPage
		hi := lo + perPage
		if lo > len(f.coins) {
			lo = len(f.coins)
		}
		if hi > len(f.coins) {
			hi = len(f.coins)
		}
		json.NewEncoder(w).Encode(market.Envelope{Success: true, Data: f.coins[lo:hi]})
	})
	mux.HandleFunc("/prices/forex", func(w http.ResponseWriter, r *http.Request) {
		if f.forexFail.Load() {
			json.NewEncoder(w).Encode(market.Envelope{Success: false, Error: "down"})
			return
		}
		json.NewEncoder(w).Encode(market.Envelope{Success: true, Data: market.ForexAssetMap{
			"Gold":    {Key: "Gold", Price: 2342.11, ChangePercent: 0.45},
			"USD/JPY": {Key: "USD/JPY", Price: 151.87, ChangePercent: -0.15},
		}})
	})
	return mux
}

func newTestPoller(t *testing.T, svc *fakeService, perPage int) *Poller {
	t.Helper()
	srv := httptest.NewServer(svc.handler())
	t.Cleanup(srv.Close)
	p := New(Config{BaseURL: srv.URL, Interval: time.Hour, PerPage: perPage})
	return p
}

func TestCycle_FirstFetchClearsLoading(t *testing.T) {
	svc := &fakeService{coins: coinSet(5)}
	p := newTestPoller(t, svc, 100)

	if !p.Snapshot().Loading {
		t.Fatal("want Loading before first cycle")
	}
	p.runCycle(context.Background())

	s := p.Snapshot()
	if s.Loading {
		t.Fatal("want Loading=false after first cycle")
	}
	if len(s.Crypto) != 5 || len(s.Forex) != 2 {
		t.Fatalf("unexpected state: %d crypto, %d forex", len(s.Crypto), len(s.Forex))
	}
	if s.LastUpdated.IsZero() {
		t.Fatal("want LastUpdated set")
	}
	if s.HasMore {
		t.Fatal("5 < perPage means no more pages")
	}
}

func TestCycle_PartialDegradation(t *testing.T) {
	svc := &fakeService{coins: coinSet(5)}
	p := newTestPoller(t, svc, 100)
	p.runCycle(context.Background())

	svc.cryptoFail.Store(true)
	p.runCycle(context.Background())

	s := p.Snapshot()
	if len(s.Crypto) != 0 {
		t.Fatalf("failed crypto source should yield empty result, got %d", len(s.Crypto))
	}
	if len(s.Forex) != 2 {
		t.Fatalf("crypto failure must not blank forex data, got %d keys", len(s.Forex))
	}
	if s.Err != "" {
		t.Fatalf("one-source failure must not set Err, got %q", s.Err)
	}
}

func TestCycle_ErrOnlyWhenBothFail(t *testing.T) {
	svc := &fakeService{coins: coinSet(5)}
	p := newTestPoller(t, svc, 100)

	svc.cryptoFail.Store(true)
	svc.forexFail.Store(true)
	p.runCycle(context.Background())
	if s := p.Snapshot(); s.Err == "" {
		t.Fatal("want Err when both sources fail")
	}

	svc.forexFail.Store(false)
	p.runCycle(context.Background())
	if s := p.Snapshot(); s.Err != "" {
		t.Fatalf("any success must clear Err, got %q", s.Err)
	}
}

func TestLoadMore_PaginationTerminates(t *testing.T) {
	// 120 coins with per_page=50: pages of 50, 50, 20 -> HasMore false on the third.
	svc := &fakeService{coins: coinSet(120)}
	p := newTestPoller(t, svc, 50)

	p.runCycle(context.Background())
	s := p.Snapshot()
	if len(s.Crypto) != 50 || !s.HasMore {
		t.Fatalf("after first page: len=%d hasMore=%v", len(s.Crypto), s.HasMore)
	}

	if err := p.LoadMore(context.Background()); err != nil {
		t.Fatalf("load more: %v", err)
	}
	s = p.Snapshot()
	if len(s.Crypto) != 100 || !s.HasMore {
		t.Fatalf("after second page: len=%d hasMore=%v", len(s.Crypto), s.HasMore)
	}

	if err := p.LoadMore(context.Background()); err != nil {
		t.Fatalf("load more: %v", err)
	}
	s = p.Snapshot()
	if len(s.Crypto) != 120 {
		t.Fatalf("after third page: len=%d", len(s.Crypto))
	}
	if s.HasMore {
		t.Fatal("short page must flip HasMore false")
	}
}

func TestLoadMore_DeduplicatesByID(t *testing.T) {
	svc := &fakeService{coins: coinSet(30)}
	p := newTestPoller(t, svc, 20)
	p.runCycle(context.Background())

	// Force the next page to overlap with already-loaded records.
	p.mu.Lock()
	p.nextPage = 1
	p.mu.Unlock()

	if err := p.LoadMore(context.Background()); err != nil {
		t.Fatalf("load more: %v", err)
	}
	s := p.Snapshot()
	seen := make(map[string]int, len(s.Crypto))
	for _, r := range s.Crypto {
		seen[r.ID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Fatalf("duplicate id %q appears %d times", id, n)
		}
	}
}

func TestCycle_SupersededResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/prices/crypto", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// First cycle stalls until a newer cycle has settled.
			<-release
			json.NewEncoder(w).Encode(market.Envelope{Success: true, Data: []market.AssetRecord{{ID: "stale"}}})
			return
		}
		json.NewEncoder(w).Encode(market.Envelope{Success: true, Data: []market.AssetRecord{{ID: "fresh"}}})
	})
	mux.HandleFunc("/prices/forex", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(market.Envelope{Success: true, Data: market.ForexAssetMap{}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL, Interval: time.Hour})
	done := make(chan struct{})
	go func() {
		p.runCycle(context.Background())
		close(done)
	}()
	for calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	p.runCycle(context.Background()) // newer cycle settles first
	close(release)
	<-done

	if s := p.Snapshot(); len(s.Crypto) != 1 || s.Crypto[0].ID != "fresh" {
		t.Fatalf("stale cycle overwrote newer state: %+v", s.Crypto)
	}
}

func TestStartStop_ReleasesLoop(t *testing.T) {
	svc := &fakeService{coins: coinSet(5)}
	p := newTestPoller(t, svc, 100)

	p.Start()
	p.Stop()
	p.Stop() // idempotent

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not exit after Stop")
	}
	if s := p.Snapshot(); s.Loading {
		t.Fatal("immediate first cycle should have completed")
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	svc := &fakeService{coins: coinSet(3)}
	p := newTestPoller(t, svc, 100)
	p.runCycle(context.Background())

	s := p.Snapshot()
	s.Crypto[0].ID = "mutated"
	s.Forex["Gold"] = market.PriceQuote{Price: 1}

	fresh := p.Snapshot()
	if fresh.Crypto[0].ID == "mutated" {
		t.Fatal("snapshot slice aliases internal state")
	}
	if fresh.Forex["Gold"].Price == 1 {
		t.Fatal("snapshot map aliases internal state")
	}
}
