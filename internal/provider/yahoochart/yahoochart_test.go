package yahoochart

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/valyala/fastjson"

	"marketdash/internal/httpx"
)

func TestParseSnapshot_ChartPreviousClose(t *testing.T) {
	var pool fastjson.ParserPool
	q, err := parseSnapshot(&pool, []byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":227.5,"chartPreviousClose":220}}]}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Price != 227.5 {
		t.Fatalf("want price 227.5, got %v", q.Price)
	}
	want := (227.5 - 220) / 220 * 100
	if math.Abs(q.ChangePercent-want) > 1e-9 {
		t.Fatalf("want change %.4f, got %v", want, q.ChangePercent)
	}
}

func TestParseSnapshot_PreviousCloseFallback(t *testing.T) {
	var pool fastjson.ParserPool
	q, err := parseSnapshot(&pool, []byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":100,"previousClose":80}}]}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(q.ChangePercent-25.0) > 1e-9 {
		t.Fatalf("want change 25, got %v", q.ChangePercent)
	}
}

func TestParseSnapshot_NoPreviousClose(t *testing.T) {
	var pool fastjson.ParserPool
	q, err := parseSnapshot(&pool, []byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":100}}]}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.ChangePercent != 0 {
		t.Fatalf("want change 0 without previous close, got %v", q.ChangePercent)
	}
}

func TestParseSnapshot_Failures(t *testing.T) {
	cases := map[string]string{
		"missing meta":       `{"chart":{"result":[{}]}}`,
		"empty result":       `{"chart":{"result":[]}}`,
		"missing chart":      `{}`,
		"non-positive price": `{"chart":{"result":[{"meta":{"regularMarketPrice":0,"chartPreviousClose":220}}]}}`,
		"malformed json":     `{"chart":`,
	}
	var pool fastjson.ParserPool
	for name, body := range cases {
		if _, err := parseSnapshot(&pool, []byte(body)); err == nil {
			t.Errorf("%s: want error", name)
		}
	}
}

func TestSnapshot_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/AAPL" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":227.48,"chartPreviousClose":225.12}}]}}`))
	}))
	defer srv.Close()

	p := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, httpx.New(2*time.Second))
	q, err := p.Snapshot(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Price != 227.48 {
		t.Fatalf("want price 227.48, got %v", q.Price)
	}
}
