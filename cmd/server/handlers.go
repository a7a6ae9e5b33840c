package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketdash/internal/market"
)

const (
	defaultPerPage = 100
	maxPerPage     = 250
)

type cryptoAggregator interface {
	Fetch(ctx context.Context, page, perPage int, ids []string) ([]market.AssetRecord, error)
}

type forexAggregator interface {
	Fetch(ctx context.Context) market.ForexAssetMap
}

type tickerProvider interface {
	Ticker(ctx context.Context, symbol string) (market.TickerData, error)
}

// Pricing endpoints always answer 200. Client poll loops branch on the
// body's success flag only, never on the status code.
func writeEnvelope(w http.ResponseWriter, env market.Envelope) {
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(env)
}

func handleCrypto(w http.ResponseWriter, r *http.Request, agg cryptoAggregator, timeout time.Duration) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", defaultPerPage)
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	ids := splitCSV(r.URL.Query().Get("ids"))

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	// A brief shared max-age absorbs bursts of concurrent client polls
	// against the bulk listing.
	w.Header().Set("Cache-Control", "public, max-age=15")

	records, err := agg.Fetch(ctx, page, perPage, ids)
	if err != nil {
		writeEnvelope(w, market.Envelope{Success: false, Data: []market.AssetRecord{}, Error: "failed to fetch crypto markets"})
		return
	}
	if records == nil {
		records = []market.AssetRecord{}
	}
	writeEnvelope(w, market.Envelope{Success: true, Data: records})
}

func handleForex(w http.ResponseWriter, r *http.Request, agg forexAggregator, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	w.Header().Set("Cache-Control", "no-store")

	// The aggregator is total: the map always covers the full instrument
	// set, live or fallback.
	writeEnvelope(w, market.Envelope{Success: true, Data: agg.Fetch(ctx)})
}

type tickerResponse struct {
	Success   bool    `json:"success"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"`
	Error     string  `json:"error,omitempty"`
}

func handleTicker(w http.ResponseWriter, r *http.Request, p tickerProvider, timeout time.Duration) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		symbol = "BTCUSDT"
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)

	data, err := p.Ticker(ctx, symbol)
	if err != nil {
		enc.Encode(tickerResponse{Success: false, Error: "failed to fetch ticker"})
		return
	}
	enc.Encode(tickerResponse{Success: true, Price: data.Price, Change24h: data.Change24h})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	x, err := strconv.Atoi(v)
	if err != nil || x <= 0 {
		return def
	}
	return x
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
