package poll

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"marketdash/internal/market"
)

// State is the authoritative in-memory market state for one poller instance.
// It is mutated only by the poll cycle and LoadMore, never by readers.
type State struct {
	Crypto      []market.AssetRecord
	Forex       market.ForexAssetMap
	Loading     bool
	Err         string
	LastUpdated time.Time
	HasMore     bool
}

// Config configures one poller instance.
type Config struct {
	// BaseURL is the pricing service root, e.g. "http://localhost:8080".
	BaseURL string
	// Interval between poll cycles. Defaults to 30s.
	Interval time.Duration
	// PerPage is the crypto listing page size. Defaults to 100.
	PerPage int
	// HTTPClient optionally overrides the default client.
	HTTPClient *http.Client
}

// Poller owns a periodic fetch cycle against the pricing endpoints.
// Instances are independent: no cross-instance cache sharing. Start returns
// after launching the loop; Stop releases the timer. An in-flight cycle from
// a just-stopped poller may finish, but a sequence number guard discards
// results from any superseded cycle so stale fetches never overwrite newer
// state.
type Poller struct {
	cfg    Config
	client *http.Client

	mu    sync.RWMutex
	state State

	seq       atomic.Uint64
	nextPage  int
	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}
}

func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 100
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Poller{
		cfg:      cfg,
		client:   client,
		state:    State{Loading: true, Forex: market.ForexAssetMap{}},
		nextPage: 2,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start fires an immediate cycle and then ticks at the configured interval.
func (p *Poller) Start() {
	p.startOnce.Do(func() {
		go p.loop()
	})
}

// Stop releases the timer. Idempotent.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
	})
}

// Done is closed once the loop has exited.
func (p *Poller) Done() <-chan struct{} { return p.done }

// Snapshot returns a copy of the current state; readers never see tearing
// from a cycle applying mid-read.
func (p *Poller) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.state
	s.Crypto = append([]market.AssetRecord(nil), p.state.Crypto...)
	forex := make(market.ForexAssetMap, len(p.state.Forex))
	for k, v := range p.state.Forex {
		forex[k] = v
	}
	s.Forex = forex
	return s
}

func (p *Poller) loop() {
	defer close(p.done)
	p.runCycle(context.Background())
	t := time.NewTicker(p.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-p.quit:
			return
		case <-t.C:
			p.runCycle(context.Background())
		}
	}
}

type sourceResult[T any] struct {
	data T
	err  error
}

// runCycle fetches both sources concurrently and merges the settled results.
// One source failing degrades that source only: crypto failure never blanks
// forex data and vice versa. Err is set only when both fail in the same
// cycle and cleared on any success.
func (p *Poller) runCycle(ctx context.Context) {
	seq := p.seq.Add(1)

	cryptoCh := make(chan sourceResult[[]market.AssetRecord], 1)
	forexCh := make(chan sourceResult[market.ForexAssetMap], 1)
	go func() {
		recs, err := p.fetchCrypto(ctx, 1, p.cfg.PerPage, nil)
		cryptoCh <- sourceResult[[]market.AssetRecord]{recs, err}
	}()
	go func() {
		fx, err := p.fetchForex(ctx)
		forexCh <- sourceResult[market.ForexAssetMap]{fx, err}
	}()
	crypto := <-cryptoCh
	forex := <-forexCh

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.seq.Load() {
		// A newer cycle settled first; this one is stale.
		return
	}

	if crypto.err != nil {
		slog.Warn("crypto poll failed", "err", crypto.err)
		p.state.Crypto = []market.AssetRecord{}
		p.state.HasMore = false
	} else {
		p.state.Crypto = crypto.data
		p.state.HasMore = len(crypto.data) == p.cfg.PerPage
		p.nextPage = 2
	}
	if forex.err != nil {
		slog.Warn("forex poll failed", "err", forex.err)
		p.state.Forex = market.ForexAssetMap{}
	} else {
		p.state.Forex = forex.data
	}

	if crypto.err != nil && forex.err != nil {
		p.state.Err = "failed to fetch market data"
	} else {
		p.state.Err = ""
	}
	p.state.Loading = false
	p.state.LastUpdated = time.Now()
}

// LoadMore appends the next listing page, de-duplicated by id. HasMore flips
// false exactly when a page comes back shorter than the requested size.
func (p *Poller) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	page := p.nextPage
	p.mu.Unlock()

	recs, err := p.fetchCrypto(ctx, page, p.cfg.PerPage, nil)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make(map[string]struct{}, len(p.state.Crypto))
	for _, r := range p.state.Crypto {
		seen[r.ID] = struct{}{}
	}
	for _, r := range recs {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		p.state.Crypto = append(p.state.Crypto, r)
	}
	p.state.HasMore = len(recs) == p.cfg.PerPage
	p.nextPage = page + 1
	return nil
}

type cryptoEnvelope struct {
	Success bool                 `json:"success"`
	Data    []market.AssetRecord `json:"data"`
	Error   string               `json:"error"`
}

func (p *Poller) fetchCrypto(ctx context.Context, page, perPage int, ids []string) ([]market.AssetRecord, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	if len(ids) > 0 {
		q.Set("ids", strings.Join(ids, ","))
	}
	var env cryptoEnvelope
	if err := p.getJSON(ctx, "/prices/crypto?"+q.Encode(), &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("crypto source failed: %s", env.Error)
	}
	return env.Data, nil
}

type forexEnvelope struct {
	Success bool                 `json:"success"`
	Data    market.ForexAssetMap `json:"data"`
	Error   string               `json:"error"`
}

func (p *Poller) fetchForex(ctx context.Context) (market.ForexAssetMap, error) {
	var env forexEnvelope
	if err := p.getJSON(ctx, "/prices/forex", &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("forex source failed: %s", env.Error)
	}
	return env.Data, nil
}

func (p *Poller) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+path, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	res, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s -> %d", path, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
