package market

// PriceQuote is the normalized shape every adapter reduces its upstream to.
// Price must be > 0 to be considered valid; ChangePercent 0 means "no data",
// not an error.
type PriceQuote struct {
	Key           string  `json:"key,omitempty"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"change"`
}

// AssetRecord is one row of the bulk crypto listing. Field names follow the
// upstream listing API so records pass through without re-mapping. Upstream
// ordering (market-cap rank) is meaningful and must be preserved.
type AssetRecord struct {
	ID                string  `json:"id"`
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	Image             *string `json:"image"`
	CurrentPrice      float64 `json:"current_price"`
	MarketCap         float64 `json:"market_cap"`
	MarketCapRank     int     `json:"market_cap_rank"`
	TotalVolume       float64 `json:"total_volume"`
	High24h           float64 `json:"high_24h"`
	Low24h            float64 `json:"low_24h"`
	ChangePercent24h  float64 `json:"price_change_percentage_24h"`
	CirculatingSupply float64 `json:"circulating_supply"`
}

// ForexAssetMap maps an instrument key ("EUR/USD", "Gold", ...) to its quote.
// The key set is fixed; a complete map contains every configured instrument,
// live or fallback.
type ForexAssetMap map[string]PriceQuote

// Envelope is the uniform wire wrapper for every pricing endpoint. The
// transport always answers HTTP 200; callers branch on Success only.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Error   string `json:"error,omitempty"`
}

// TickerData is the flattened single-instrument ticker payload.
type TickerData struct {
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"`
}
