// Package coingecko implements domain.PriceProvider on CoinGecko's simple
// price endpoint. Requests are rate limited and bounded by a timeout. Failed
// requests are never retried here; the caller's next cycle is the retry.
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

var _ domain.PriceProvider = (*Client)(nil)

// ClientConfig holds configuration for the CoinGecko client.
type ClientConfig struct {
	// APIKey is optional. Keys are sent as x-cg-pro-api-key against the pro
	// host and as x-cg-demo-api-key otherwise.
	APIKey string

	// BaseURL defaults to https://api.coingecko.com/api/v3.
	BaseURL string

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// RateLimitPerMin defaults to 25, below the public tier limit.
	RateLimitPerMin int

	// Symbols maps lower-case tickers to CoinGecko coin ids.
	Symbols map[string]string

	Logger     *slog.Logger
	HTTPClient *http.Client
}

// ClientConfigDefaults returns a config with default values.
func ClientConfigDefaults() ClientConfig {
	return ClientConfig{
		BaseURL:         "https://api.coingecko.com/api/v3",
		Timeout:         10 * time.Second,
		RateLimitPerMin: 25,
		Symbols: map[string]string{
			"btc": "bitcoin",
			"eth": "ethereum",
			"mon": "monad",
		},
		Logger: slog.Default(),
	}
}

// Client fetches USD spot prices.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
}

// NewClient creates a CoinGecko client.
func NewClient(config ClientConfig) *Client {
	applyDefaults(&config, ClientConfigDefaults())

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	symbols := make(map[string]string, len(config.Symbols))
	for k, v := range config.Symbols {
		symbols[strings.ToLower(k)] = v
	}
	config.Symbols = symbols
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	rps := float64(config.RateLimitPerMin) / 60.0
	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     config.Logger.With(slog.String("component", "coingecko")),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func applyDefaults(config *ClientConfig, defaults ClientConfig) {
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.RateLimitPerMin == 0 {
		config.RateLimitPerMin = defaults.RateLimitPerMin
	}
	if len(config.Symbols) == 0 {
		config.Symbols = defaults.Symbols
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return "coingecko" }

// CoinID resolves a ticker such as "BTC" to its CoinGecko id.
func (c *Client) CoinID(symbol string) (string, bool) {
	id, ok := c.config.Symbols[strings.ToLower(strings.TrimSpace(symbol))]
	return id, ok
}

// GetPrice returns the USD price of symbol. Every failure wraps
// domain.ErrUnavailable.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	coinID, ok := c.CoinID(symbol)
	if !ok {
		return 0, fmt.Errorf("coingecko: unknown symbol %q: %w", symbol, domain.ErrUnavailable)
	}

	params := url.Values{
		"ids":           {coinID},
		"vs_currencies": {"usd"},
	}

	var response simplePriceResponse
	if err := c.doRequest(ctx, c.config.BaseURL+"/simple/price", params, &response); err != nil {
		return 0, fmt.Errorf("coingecko: %s: %w: %w", coinID, domain.ErrUnavailable, err)
	}

	quote, ok := response[coinID]
	if !ok || quote.USD == nil {
		return 0, fmt.Errorf("coingecko: %s: no usd price in response: %w", coinID, domain.ErrUnavailable)
	}

	c.logger.Debug("price fetched",
		slog.String("symbol", symbol),
		slog.Float64("usd", *quote.USD),
	)
	return *quote.USD, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set(c.apiKeyHeader(), c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", slog.String("error", closeErr.Error()))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return errors.New("rate limited (HTTP 429)")
	}
	if resp.StatusCode >= 400 {
		var apiErr coinGeckoError
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.message() != "" {
			return fmt.Errorf("API error (HTTP %d): %s", resp.StatusCode, apiErr.message())
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func (c *Client) apiKeyHeader() string {
	if strings.Contains(c.config.BaseURL, "pro-api.") {
		return "x-cg-pro-api-key"
	}
	return "x-cg-demo-api-key"
}
