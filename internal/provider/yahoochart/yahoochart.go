package yahoochart

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/valyala/fastjson"

	"marketdash/internal/httpx"
	"marketdash/internal/market"
)

// Config controls the chart snapshot provider behavior.
type Config struct {
	Name    string
	BaseURL string
	Timeout time.Duration
}

// Provider reads a price snapshot out of the Yahoo Finance chart document.
// Only three meta fields are consumed, so the nested document is picked
// apart with fastjson instead of a full struct decode.
type Provider struct {
	cfg    Config
	client *httpx.Client
	pool   fastjson.ParserPool
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "YahooChart"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 6 * time.Second
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

// Snapshot fetches meta.regularMarketPrice and the previous close for one
// symbol. chartPreviousClose is preferred; previousClose is the secondary
// fallback. Missing meta or a non-positive price is a failure.
func (p *Provider) Snapshot(ctx context.Context, symbol string) (market.PriceQuote, error) {
	if symbol == "" {
		return market.PriceQuote{}, fmt.Errorf("yahoochart: empty symbol")
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	u := fmt.Sprintf("%s/v8/finance/chart/%s", p.cfg.BaseURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return market.PriceQuote{}, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := p.client.Do(ctx, req)
	if err != nil {
		return market.PriceQuote{}, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return market.PriceQuote{}, fmt.Errorf("GET %s -> %d: %s", u, res.StatusCode, string(b))
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return market.PriceQuote{}, err
	}
	return parseSnapshot(&p.pool, body)
}

func parseSnapshot(pool *fastjson.ParserPool, body []byte) (market.PriceQuote, error) {
	parser := pool.Get()
	defer pool.Put(parser)

	doc, err := parser.ParseBytes(body)
	if err != nil {
		return market.PriceQuote{}, fmt.Errorf("yahoochart: parse: %w", err)
	}

	results := doc.GetArray("chart", "result")
	if len(results) == 0 {
		return market.PriceQuote{}, fmt.Errorf("yahoochart: empty chart result")
	}
	meta := results[0].Get("meta")
	if meta == nil {
		return market.PriceQuote{}, fmt.Errorf("yahoochart: missing meta")
	}

	price := meta.GetFloat64("regularMarketPrice")
	if price <= 0 {
		return market.PriceQuote{}, fmt.Errorf("yahoochart: non-positive price %v", price)
	}

	prev := meta.GetFloat64("chartPreviousClose")
	if prev <= 0 {
		prev = meta.GetFloat64("previousClose")
	}

	change := 0.0
	if prev > 0 {
		change = (price - prev) / prev * 100
	}
	return market.PriceQuote{Price: price, ChangePercent: change}, nil
}
