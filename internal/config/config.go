package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type CoinGecko struct {
	BaseURL               string `json:"base_url"`
	APIKey                string `json:"api_key"`
	TimeoutSec            int    `json:"timeout_sec"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec"`
	Burst                 int    `json:"burst"`
	CacheTTLSeconds       int    `json:"cache_ttl_sec"`
	CacheMaxEntries       int    `json:"cache_max_entries"`
}

type Binance struct {
	BaseURL              string `json:"base_url"`
	TimeoutSec           int    `json:"timeout_sec"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute"`
	Burst                int    `json:"burst"`
}

type Stooq struct {
	BaseURL               string `json:"base_url"`
	TimeoutSec            int    `json:"timeout_sec"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec"`
	Burst                 int    `json:"burst"`
}

type YahooChart struct {
	BaseURL    string `json:"base_url"`
	TimeoutSec int    `json:"timeout_sec"`
}

type Redis struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type Poll struct {
	IntervalSec int `json:"interval_sec"`
	PerPage     int `json:"per_page"`
}

type Config struct {
	Server     Server     `json:"server"`
	CoinGecko  CoinGecko  `json:"coingecko"`
	Binance    Binance    `json:"binance"`
	Stooq      Stooq      `json:"stooq"`
	YahooChart YahooChart `json:"yahoochart"`
	Redis      Redis      `json:"redis"`
	Poll       Poll       `json:"poll"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10},
		CoinGecko: CoinGecko{
			BaseURL:              "https://api.coingecko.com/api/v3",
			TimeoutSec:           8,
			MaxRequestsPerMinute: 10,
			Burst:                2,
			CacheTTLSeconds:      30,
			CacheMaxEntries:      64,
		},
		Binance: Binance{
			BaseURL:    "https://api.binance.com",
			TimeoutSec: 5,
		},
		Stooq: Stooq{
			BaseURL:    "https://stooq.com",
			TimeoutSec: 6,
		},
		YahooChart: YahooChart{
			BaseURL:    "https://query1.finance.yahoo.com",
			TimeoutSec: 6,
		},
		Redis: Redis{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		Poll: Poll{IntervalSec: 30, PerPage: 100},
	}
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}

	if v := os.Getenv("COINGECKO_BASE_URL"); v != "" {
		cfg.CoinGecko.BaseURL = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		cfg.CoinGecko.APIKey = v
	}
	if v := os.Getenv("COINGECKO_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.CoinGecko.TimeoutSec = x
		}
	}
	if v := os.Getenv("COINGECKO_MAX_RPM"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.CoinGecko.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("COINGECKO_MIN_INTERVAL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.CoinGecko.MinRequestIntervalSec = x
		}
	}
	if v := os.Getenv("COINGECKO_BURST"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.CoinGecko.Burst = x
		}
	}
	if v := os.Getenv("COINGECKO_CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.CoinGecko.CacheTTLSeconds = x
		}
	}
	if v := os.Getenv("COINGECKO_CACHE_MAX_ENTRIES"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.CoinGecko.CacheMaxEntries = x
		}
	}

	if v := os.Getenv("BINANCE_BASE_URL"); v != "" {
		cfg.Binance.BaseURL = v
	}
	if v := os.Getenv("BINANCE_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Binance.TimeoutSec = x
		}
	}
	if v := os.Getenv("BINANCE_MAX_RPM"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Binance.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("BINANCE_BURST"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Binance.Burst = x
		}
	}

	if v := os.Getenv("STOOQ_BASE_URL"); v != "" {
		cfg.Stooq.BaseURL = v
	}
	if v := os.Getenv("STOOQ_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Stooq.TimeoutSec = x
		}
	}
	if v := os.Getenv("STOOQ_MAX_RPM"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Stooq.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("STOOQ_MIN_INTERVAL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Stooq.MinRequestIntervalSec = x
		}
	}
	if v := os.Getenv("STOOQ_BURST"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Stooq.Burst = x
		}
	}

	if v := os.Getenv("YAHOOCHART_BASE_URL"); v != "" {
		cfg.YahooChart.BaseURL = v
	}
	if v := os.Getenv("YAHOOCHART_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.YahooChart.TimeoutSec = x
		}
	}

	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			cfg.Redis.Enabled = true
		case "0", "false", "no", "n":
			cfg.Redis.Enabled = false
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Redis.DB = x
		}
	}

	if v := os.Getenv("POLL_INTERVAL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Poll.IntervalSec = x
		}
	}
	if v := os.Getenv("POLL_PER_PAGE"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Poll.PerPage = x
		}
	}
}
