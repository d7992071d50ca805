package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/mwtsai/folio"
)

// DefaultEndpoint is the Yahoo Finance chart API used for both equity quotes
// and FX rates (FX pairs are quoted as tickers like "USDTWD=X").
const DefaultEndpoint = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooClient fetches quotes from the Yahoo Finance chart API. Requests are
// rate-limited and wrapped in a circuit breaker so a degraded provider cannot
// stall or hammer the upstream.
type YahooClient struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
}

// NewYahooClient creates a client against the given endpoint, or against the
// public Yahoo Finance API when endpoint is empty.
func NewYahooClient(endpoint string) *YahooClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	settings := gobreaker.Settings{
		Name:     "yahoo-finance",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &YahooClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		// Yahoo tolerates roughly 2 requests per second from a polite client.
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// fetchChart performs one rate-limited, breaker-protected chart request and
// extracts the regular market price and quote currency.
func (y *YahooClient) fetchChart(ctx context.Context, symbol string) (decimal.Decimal, string, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return decimal.Decimal{}, "", fmt.Errorf("rate limit wait for %s: %w", symbol, err)
	}

	result, err := y.breaker.Execute(func() (any, error) {
		return y.get(ctx, symbol)
	})
	if err != nil {
		return decimal.Decimal{}, "", err
	}
	chart := result.(map[string]any)

	price, err := chartFloat(chart, "$.chart.result[0].meta.regularMarketPrice")
	if err != nil {
		return decimal.Decimal{}, "", fmt.Errorf("no price in chart for %s: %w", symbol, err)
	}
	currency, err := chartString(chart, "$.chart.result[0].meta.currency")
	if err != nil {
		return decimal.Decimal{}, "", fmt.Errorf("no currency in chart for %s: %w", symbol, err)
	}
	log.Debug().Str("symbol", symbol).Float64("price", price).Str("currency", currency).Msg("quote fetched")
	return decimal.NewFromFloat(price), currency, nil
}

// get performs the HTTP GET and decodes the response body as generic JSON.
func (y *YahooClient) get(ctx context.Context, symbol string) (map[string]any, error) {
	url := fmt.Sprintf("%s/%s?interval=1d&range=1d", y.endpoint, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "folio/1.0")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot reach quote provider for %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("quote provider answered %s for %s", resp.Status, symbol)
	}

	var chart map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("cannot decode chart for %s: %w", symbol, err)
	}
	return chart, nil
}

// FetchPrice returns the current price and quote currency of a ticker.
func (y *YahooClient) FetchPrice(ctx context.Context, ticker string) (decimal.Decimal, string, error) {
	return y.fetchChart(ctx, ticker)
}

// FetchRate returns how many units of to one unit of from currently buys.
func (y *YahooClient) FetchRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	r, _, err := y.fetchChart(ctx, folio.FXTicker(from, to))
	return r, err
}

// chartFloat extracts a float value from the chart JSON. jsonpath sometimes
// wraps a single answer in a list; the first element wins.
func chartFloat(chart map[string]any, path string) (float64, error) {
	v, err := chartValue(chart, path)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%q is not a number: %v", path, v)
	}
	return f, nil
}

// chartString extracts a string value from the chart JSON.
func chartString(chart map[string]any, path string) (string, error) {
	v, err := chartValue(chart, path)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%q is not a string: %v", path, v)
	}
	return s, nil
}

func chartValue(chart map[string]any, path string) (any, error) {
	v, err := jsonpath.Get(path, map[string]any(chart))
	if err != nil {
		return nil, err
	}
	if list, ok := v.([]any); ok && len(list) > 0 {
		v = list[0]
	}
	return v, nil
}
