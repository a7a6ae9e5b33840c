package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"marketdash/internal/httpx"
	"marketdash/internal/market"
	"marketdash/internal/ratelimit"
)

// Config controls the Binance ticker provider behavior.
type Config struct {
	Name    string
	BaseURL string
	// Timeout bounds each upstream call. Defaults to 5s.
	Timeout time.Duration
	// Gate optionally rate-limits calls; nil means no gating.
	Gate ratelimit.Gate
}

// Provider fetches a single-symbol spot price plus 24h stats.
type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Binance"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.binance.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

// Ticker returns the current price and 24h change for one symbol.
// The price call is mandatory; a failed stats call degrades to change 0
// rather than failing the whole quote. No retries: the next poll cycle is
// the retry.
func (p *Provider) Ticker(ctx context.Context, symbol string) (market.TickerData, error) {
	if symbol == "" {
		return market.TickerData{}, fmt.Errorf("binance: empty symbol")
	}
	if p.cfg.Gate != nil {
		if err := p.cfg.Gate.Wait(ctx); err != nil {
			return market.TickerData{}, err
		}
	}

	price, err := p.fetchPrice(ctx, symbol)
	if err != nil {
		return market.TickerData{}, err
	}

	change, err := p.fetchChange24h(ctx, symbol)
	if err != nil {
		// Partial success is success: keep the price, report no change data.
		change = 0
	}
	return market.TickerData{Price: price, Change24h: change}, nil
}

type priceResponse struct {
	Symbol string      `json:"symbol"`
	Price  json.Number `json:"price"`
}

func (p *Provider) fetchPrice(ctx context.Context, symbol string) (float64, error) {
	var resp priceResponse
	if err := p.getJSON(ctx, "/api/v3/ticker/price", symbol, &resp); err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(resp.Price.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("binance: non-numeric price %q", resp.Price.String())
	}
	if v <= 0 {
		return 0, fmt.Errorf("binance: non-positive price %v for %s", v, symbol)
	}
	return v, nil
}

type statsResponse struct {
	Symbol             string      `json:"symbol"`
	PriceChangePercent json.Number `json:"priceChangePercent"`
}

func (p *Provider) fetchChange24h(ctx context.Context, symbol string) (float64, error) {
	var resp statsResponse
	if err := p.getJSON(ctx, "/api/v3/ticker/24hr", symbol, &resp); err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(resp.PriceChangePercent.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("binance: non-numeric change %q", resp.PriceChangePercent.String())
	}
	return v, nil
}

func (p *Provider) getJSON(ctx context.Context, path, symbol string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	u := fmt.Sprintf("%s%s?symbol=%s", p.cfg.BaseURL, path, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	res, err := p.client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return fmt.Errorf("GET %s -> %d: %s", u, res.StatusCode, string(b))
	}
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
