package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"marketdash/internal/aggregate"
	"marketdash/internal/cache"
	"marketdash/internal/config"
	"marketdash/internal/httpx"
	"marketdash/internal/provider/binance"
	"marketdash/internal/provider/coingecko"
	"marketdash/internal/provider/stooq"
	"marketdash/internal/provider/yahoochart"
	"marketdash/internal/ratelimit"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	requestTimeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
	httpClient := httpx.New(requestTimeout)

	// Upstream clients
	listing, err := coingecko.New(cfg.CoinGecko.APIKey,
		coingecko.WithBaseURL(cfg.CoinGecko.BaseURL),
		coingecko.WithHTTPClient(httpClient.HTTP),
		coingecko.WithHeader(http.Header{"User-Agent": []string{"marketdash/1.0"}}),
		coingecko.WithTimeout(time.Duration(cfg.CoinGecko.TimeoutSec)*time.Second),
	)
	if err != nil {
		log.Fatalf("coingecko client: %v", err)
	}

	ticker := binance.New(binance.Config{
		BaseURL: cfg.Binance.BaseURL,
		Timeout: time.Duration(cfg.Binance.TimeoutSec) * time.Second,
		Gate:    ratelimit.FromConfig(cfg.Binance.MaxRequestsPerMinute, cfg.Binance.Burst, 0),
	}, httpClient)

	csvQuotes := stooq.New(stooq.Config{
		BaseURL: cfg.Stooq.BaseURL,
		Timeout: time.Duration(cfg.Stooq.TimeoutSec) * time.Second,
		Gate:    ratelimit.FromConfig(cfg.Stooq.MaxRequestsPerMinute, cfg.Stooq.Burst, cfg.Stooq.MinRequestIntervalSec),
	}, httpClient)

	chartQuotes := yahoochart.New(yahoochart.Config{
		BaseURL: cfg.YahooChart.BaseURL,
		Timeout: time.Duration(cfg.YahooChart.TimeoutSec) * time.Second,
	}, httpClient)

	// Listing cache: shared Redis when configured, in-process otherwise.
	var listingCache cache.Listing
	cacheTTL := time.Duration(cfg.CoinGecko.CacheTTLSeconds) * time.Second
	if cfg.Redis.Enabled {
		listingCache = cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cacheTTL)
		slog.Info("listing cache: redis", "addr", cfg.Redis.Addr)
	} else {
		listingCache = &cache.Memory{TTL: cacheTTL, MaxEntries: cfg.CoinGecko.CacheMaxEntries}
	}

	cryptoAgg := aggregate.NewCrypto(listing,
		aggregate.WithCache(listingCache),
		aggregate.WithGate(ratelimit.FromConfig(cfg.CoinGecko.MaxRequestsPerMinute, cfg.CoinGecko.Burst, cfg.CoinGecko.MinRequestIntervalSec)),
	)
	forexAgg := aggregate.NewForex(csvQuotes, chartQuotes)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /prices/crypto", func(w http.ResponseWriter, r *http.Request) {
		handleCrypto(w, r, cryptoAgg, requestTimeout)
	})
	mux.HandleFunc("GET /prices/forex", func(w http.ResponseWriter, r *http.Request) {
		handleForex(w, r, forexAgg, requestTimeout)
	})
	mux.HandleFunc("GET /prices/ticker", func(w http.ResponseWriter, r *http.Request) {
		handleTicker(w, r, ticker, requestTimeout)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withRequestLog(withJSONHeaders(withGzip(recoverToEnvelope(mux)))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
