package coingecko

import (
	"net/http"
	"net/url"
	"time"
)

const baseURL = "https://api.coingecko.com/api/v3"

// defaultTimeout bounds every listing call. The bulk table view depends on
// this endpoint, so it carries its own hard timeout independent of the
// caller's client settings.
const defaultTimeout = 8 * time.Second

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=coingecko_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the CoinGecko markets API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP httpClient.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// query contains additional query parameters to be sent with each request.
	query url.Values
	// timeout is the hard per-call timeout.
	timeout time.Duration
}

// ClientOption is a configuration option for the CoinGecko client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithTimeout overrides the hard per-call timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// New creates a new CoinGecko client. The key is optional; the public API
// works unauthenticated at a lower rate limit.
func New(key string, options ...ClientOption) (*Client, error) {
	var client = &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
		timeout:    defaultTimeout,
	}
	if key != "" {
		// https://docs.coingecko.com/reference/authentication
		client.header.Set("x-cg-demo-api-key", key)
	}
	for _, option := range options {
		option(client)
	}
	return client, nil
}
