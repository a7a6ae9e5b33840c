package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"marketdash/internal/market"
)

// Markets retrieves one page of the coin listing ordered by market cap.
// ids optionally narrows the listing to specific coin ids. Upstream ordering
// is preserved; callers compare len(result) against perPage to detect the
// last page.
func (c *Client) Markets(ctx context.Context, page, perPage int, ids []string) ([]market.AssetRecord, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 100
	}

	query := maps.Clone(c.query)
	query.Set("vs_currency", "usd")
	query.Set("order", "market_cap_desc")
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("sparkline", "false")
	if len(ids) > 0 {
		query.Set("ids", strings.Join(ids, ","))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/coins/markets?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return nil, fmt.Errorf("GET %s -> %d: %s", url, res.StatusCode, string(b))
	}

	// The free tier answers rate-limit pages as HTML with a 200; refuse
	// anything that is not declared JSON before decoding.
	mt, _, _ := mime.ParseMediaType(res.Header.Get("Content-Type"))
	if mt != "application/json" {
		return nil, fmt.Errorf("unexpected content type %q", res.Header.Get("Content-Type"))
	}

	var records []market.AssetRecord
	if err := json.NewDecoder(res.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return records, nil
}
