package aggregate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"marketdash/internal/market"
)

var errNoSource = errors.New("no source configured")

// CSVQuoter is the forex/commodities quote source (daily CSV rows).
type CSVQuoter interface {
	Quote(ctx context.Context, symbol string) (market.PriceQuote, error)
}

// ChartQuoter is the equities snapshot source (chart meta document).
type ChartQuoter interface {
	Snapshot(ctx context.Context, symbol string) (market.PriceQuote, error)
}

// csvSymbols maps instrument keys to CSV upstream symbols.
var csvSymbols = map[string]string{
	"EUR/USD":   "eurusd",
	"GBP/USD":   "gbpusd",
	"USD/JPY":   "usdjpy",
	"Gold":      "xauusd",
	"Silver":    "xagusd",
	"Crude Oil": "cl.f",
}

// chartSymbols maps instrument keys to chart upstream symbols.
var chartSymbols = map[string]string{
	"Apple":     "AAPL",
	"Microsoft": "MSFT",
	"Tesla":     "TSLA",
	"Amazon":    "AMZN",
}

// fallbackAsOf records when the fallback snapshot below was taken. The table
// is served verbatim when live aggregation fails; there is no expiry policy.
const fallbackAsOf = "2024-11-15"

var fallbackQuotes = map[string]market.PriceQuote{
	"EUR/USD":   {Price: 1.0532, ChangePercent: -0.28},
	"GBP/USD":   {Price: 1.2669, ChangePercent: -0.41},
	"USD/JPY":   {Price: 151.87, ChangePercent: -0.15},
	"Gold":      {Price: 2563.10, ChangePercent: -0.12},
	"Silver":    {Price: 30.285, ChangePercent: -0.36},
	"Crude Oil": {Price: 67.02, ChangePercent: -2.45},
	"Apple":     {Price: 225.00, ChangePercent: -1.41},
	"Microsoft": {Price: 415.00, ChangePercent: -2.79},
	"Tesla":     {Price: 320.72, ChangePercent: 3.07},
	"Amazon":    {Price: 202.61, ChangePercent: -4.22},
}

// Forex aggregates the fixed forex/commodities/equities instrument set.
// It is a total function: Fetch always produces a complete map over every
// key in both symbol tables, substituting the hardcoded fallback for any
// instrument whose upstream call fails.
type Forex struct {
	csv   CSVQuoter
	chart ChartQuoter
}

func NewForex(csv CSVQuoter, chart ChartQuoter) *Forex {
	return &Forex{csv: csv, chart: chart}
}

// Keys returns the fixed instrument key set.
func (a *Forex) Keys() []string {
	keys := make([]string, 0, len(csvSymbols)+len(chartSymbols))
	for k := range csvSymbols {
		keys = append(keys, k)
	}
	for k := range chartSymbols {
		keys = append(keys, k)
	}
	return keys
}

type keyed struct {
	key   string
	quote market.PriceQuote
	err   error
}

// Fetch fans out to every instrument concurrently and waits for all
// settlements; one slow or broken source never blocks or invalidates the
// others. A per-call timeout inside each adapter bounds the whole fan-out.
func (a *Forex) Fetch(ctx context.Context) market.ForexAssetMap {
	total := len(csvSymbols) + len(chartSymbols)
	ch := make(chan keyed, total)

	for key, sym := range csvSymbols {
		key, sym := key, sym
		go func() {
			if a.csv == nil {
				ch <- keyed{key: key, err: errNoSource}
				return
			}
			q, err := a.csv.Quote(ctx, sym)
			ch <- keyed{key: key, quote: q, err: err}
		}()
	}
	for key, sym := range chartSymbols {
		key, sym := key, sym
		go func() {
			if a.chart == nil {
				ch <- keyed{key: key, err: errNoSource}
				return
			}
			q, err := a.chart.Snapshot(ctx, sym)
			ch <- keyed{key: key, quote: q, err: err}
		}()
	}

	out := make(market.ForexAssetMap, total)
	for i := 0; i < total; i++ {
		r := <-ch
		if r.err != nil || r.quote.Price <= 0 {
			if r.err != nil {
				slog.Warn("instrument fetch failed, using fallback", "key", r.key, "err", r.err)
			}
			out[r.key] = roundQuote(r.key, fallbackQuotes[r.key])
			continue
		}
		out[r.key] = roundQuote(r.key, r.quote)
	}
	return out
}

// roundQuote pins the price to the instrument's fixed precision. Live and
// fallback values go through the same rounding so formatting is identical
// across polls.
func roundQuote(key string, q market.PriceQuote) market.PriceQuote {
	q.Key = key
	q.Price = decimal.NewFromFloat(q.Price).Round(market.Precision(key)).InexactFloat64()
	return q
}
