package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"marketdash/internal/aggregate"
	"marketdash/internal/cache"
	"marketdash/internal/config"
	"marketdash/internal/httpx"
	"marketdash/internal/market"
	"marketdash/internal/provider/binance"
	"marketdash/internal/provider/coingecko"
	"marketdash/internal/provider/stooq"
	"marketdash/internal/provider/yahoochart"
	"marketdash/internal/ratelimit"
)

// One-shot dump of the aggregators, useful for eyeballing live output
// without running the server.
func main() {
	_ = godotenv.Load()

	var page int
	var perPage int
	var idsCSV string
	var symbol string
	var timeout int
	var configPath string
	var skipCrypto bool
	var skipForex bool

	flag.IntVar(&page, "page", 1, "crypto listing page")
	flag.IntVar(&perPage, "per-page", 20, "crypto listing page size")
	flag.StringVar(&idsCSV, "ids", "", "comma-separated coin ids filter")
	flag.StringVar(&symbol, "symbol", "", "optional ticker symbol (e.g. BTCUSDT)")
	flag.IntVar(&timeout, "timeout", 15, "request timeout seconds")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
	flag.BoolVar(&skipCrypto, "skip-crypto", false, "skip the crypto listing")
	flag.BoolVar(&skipForex, "skip-forex", false, "skip the forex/commodities/equities map")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if timeout > 0 {
		cfg.Server.RequestTimeoutSec = timeout
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	listing, err := coingecko.New(cfg.CoinGecko.APIKey,
		coingecko.WithBaseURL(cfg.CoinGecko.BaseURL),
		coingecko.WithHTTPClient(httpClient.HTTP),
		coingecko.WithHeader(http.Header{"User-Agent": []string{"marketdash/1.0"}}),
		coingecko.WithTimeout(time.Duration(cfg.CoinGecko.TimeoutSec)*time.Second),
	)
	if err != nil {
		log.Fatalf("coingecko client: %v", err)
	}
	cryptoAgg := aggregate.NewCrypto(listing,
		aggregate.WithCache(&cache.Memory{TTL: time.Duration(cfg.CoinGecko.CacheTTLSeconds) * time.Second}),
		aggregate.WithGate(ratelimit.FromConfig(cfg.CoinGecko.MaxRequestsPerMinute, cfg.CoinGecko.Burst, cfg.CoinGecko.MinRequestIntervalSec)),
	)

	csvQuotes := stooq.New(stooq.Config{
		BaseURL: cfg.Stooq.BaseURL,
		Timeout: time.Duration(cfg.Stooq.TimeoutSec) * time.Second,
		Gate:    ratelimit.FromConfig(cfg.Stooq.MaxRequestsPerMinute, cfg.Stooq.Burst, cfg.Stooq.MinRequestIntervalSec),
	}, httpClient)
	chartQuotes := yahoochart.New(yahoochart.Config{
		BaseURL: cfg.YahooChart.BaseURL,
		Timeout: time.Duration(cfg.YahooChart.TimeoutSec) * time.Second,
	}, httpClient)
	forexAgg := aggregate.NewForex(csvQuotes, chartQuotes)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.RequestTimeoutSec)*time.Second)
	defer cancel()

	out := struct {
		Crypto []market.AssetRecord `json:"crypto,omitempty"`
		Forex  market.ForexAssetMap `json:"forex,omitempty"`
		Ticker *market.TickerData   `json:"ticker,omitempty"`
	}{}

	if !skipCrypto {
		records, err := cryptoAgg.Fetch(ctx, page, perPage, splitCSV(idsCSV))
		if err != nil {
			log.Printf("crypto: %v", err)
		}
		out.Crypto = records
	}
	if !skipForex {
		out.Forex = forexAgg.Fetch(ctx)
	}
	if symbol != "" {
		ticker := binance.New(binance.Config{
			BaseURL: cfg.Binance.BaseURL,
			Timeout: time.Duration(cfg.Binance.TimeoutSec) * time.Second,
		}, httpClient)
		data, err := ticker.Ticker(ctx, symbol)
		if err != nil {
			log.Printf("ticker %s: %v", symbol, err)
		} else {
			out.Ticker = &data
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	enc.Encode(out)
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
