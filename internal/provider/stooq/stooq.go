package stooq

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marketdash/internal/httpx"
	"marketdash/internal/market"
	"marketdash/internal/ratelimit"
)

// Config controls the Stooq CSV quote provider behavior.
type Config struct {
	Name    string
	BaseURL string
	Timeout time.Duration
	Gate    ratelimit.Gate
}

// Provider fetches daily quotes from the Stooq CSV endpoint.
type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Stooq"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://stooq.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 6 * time.Second
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

// Quote fetches one symbol and derives the open-to-last change from the
// trailing CSV line `Symbol,Date,Time,Open,High,Low,Close,Volume`.
func (p *Provider) Quote(ctx context.Context, symbol string) (market.PriceQuote, error) {
	if symbol == "" {
		return market.PriceQuote{}, fmt.Errorf("stooq: empty symbol")
	}
	if p.cfg.Gate != nil {
		if err := p.cfg.Gate.Wait(ctx); err != nil {
			return market.PriceQuote{}, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	u := fmt.Sprintf("%s/q/l/?s=%s&f=sd2t2ohlcv&h&e=csv", p.cfg.BaseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return market.PriceQuote{}, err
	}
	req.Header.Set("Accept", "text/csv")

	res, err := p.client.Do(ctx, req)
	if err != nil {
		return market.PriceQuote{}, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return market.PriceQuote{}, fmt.Errorf("GET %s -> %d: %s", u, res.StatusCode, string(b))
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return market.PriceQuote{}, err
	}
	return parseQuoteCSV(string(body))
}

// parseQuoteCSV extracts open and close from the last non-empty line.
// Fewer than 2 lines (header + data) or fewer than 7 fields is malformed.
func parseQuoteCSV(body string) (market.PriceQuote, error) {
	lines := splitLines(body)
	if len(lines) < 2 {
		return market.PriceQuote{}, fmt.Errorf("stooq: short CSV (%d lines)", len(lines))
	}
	fields := strings.Split(lines[len(lines)-1], ",")
	if len(fields) < 7 {
		return market.PriceQuote{}, fmt.Errorf("stooq: short CSV row (%d fields)", len(fields))
	}

	open, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
	if err != nil {
		return market.PriceQuote{}, fmt.Errorf("stooq: bad open %q", fields[3])
	}
	last, err := strconv.ParseFloat(strings.TrimSpace(fields[6]), 64)
	if err != nil {
		return market.PriceQuote{}, fmt.Errorf("stooq: bad close %q", fields[6])
	}
	if last <= 0 {
		return market.PriceQuote{}, fmt.Errorf("stooq: non-positive close %v", last)
	}

	change := 0.0
	if open > 0 {
		change = (last - open) / open * 100
	}
	return market.PriceQuote{Price: last, ChangePercent: change}, nil
}

func splitLines(s string) []string {
	raw := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
