package quote

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"paper-broker-go/internal/config"
)

// RestClient fetches quotes from a Tiingo-compatible REST API.
// It implements the Provider interface.
type RestClient struct {
	client  *resty.Client
	apiKey  string
	logger  *zap.Logger
	limiter *rate.Limiter
	// retryWait is the base wait for the exponential retry backoff.
	retryWait time.Duration
}

// ensure RestClient implements the interface
var _ Provider = (*RestClient)(nil)

// NewRestClient creates a new quote API client.
func NewRestClient(cfg *config.Quote, logger *zap.Logger) *RestClient {
	client := resty.New().SetBaseURL(cfg.BaseURL)

	// Initialize the rate limiter
	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:    client,
		apiKey:    cfg.ApiKey,
		logger:    logger,
		limiter:   limiter,
		retryWait: time.Second,
	}
}

// iexPrice is one element of the /iex/{symbol} response.
type iexPrice struct {
	Ticker    string  `json:"ticker"`
	Last      float64 `json:"last"`
	TngoLast  float64 `json:"tngoLast"`
	Timestamp string  `json:"timestamp"`
}

// dailyMeta is the /tiingo/daily/{symbol} response.
type dailyMeta struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

// Lookup fetches the latest price and company name for a symbol. It issues
// two requests, matching the upstream API split between intraday prices and
// symbol metadata.
func (c *RestClient) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	if symbol == "" {
		return nil, &Error{Kind: KindNotFound, Symbol: symbol, Detail: "empty symbol"}
	}

	var prices []iexPrice
	req := c.newRequest(ctx).SetResult(&prices)
	resp, err := c.doRequest(ctx, http.MethodGet, "/iex/"+url.PathEscape(symbol), req)
	if err != nil {
		return nil, c.classify(symbol, resp, err)
	}
	if len(prices) == 0 {
		return nil, &Error{Kind: KindNotFound, Symbol: symbol, Detail: "no price data"}
	}

	last := prices[0].Last
	if last == 0 {
		last = prices[0].TngoLast
	}
	if last <= 0 {
		return nil, &Error{Kind: KindUnavailable, Symbol: symbol, Detail: "non-positive last price"}
	}

	var meta dailyMeta
	metaReq := c.newRequest(ctx).SetResult(&meta)
	resp, err = c.doRequest(ctx, http.MethodGet, "/tiingo/daily/"+url.PathEscape(symbol), metaReq)
	if err != nil {
		return nil, c.classify(symbol, resp, err)
	}

	ts, err := time.Parse(time.RFC3339, prices[0].Timestamp)
	if err != nil {
		ts = time.Now()
	}

	return &Quote{
		Symbol:    symbol,
		Name:      meta.Name,
		Price:     decimal.NewFromFloat(last),
		Timestamp: ts,
	}, nil
}

func (c *RestClient) newRequest(ctx context.Context) *resty.Request {
	return c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Token "+c.apiKey)
}

// classify maps a transport-level failure onto the typed error taxonomy.
// A 4xx answer means the upstream does not know the symbol; everything else
// is a transient outage.
func (c *RestClient) classify(symbol string, resp *resty.Response, err error) *Error {
	if resp != nil && resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
		return &Error{Kind: KindNotFound, Symbol: symbol, Detail: resp.Status(), Err: err}
	}
	return &Error{Kind: KindUnavailable, Symbol: symbol, Detail: "upstream request failed", Err: err}
}

// doRequest handles the actual request execution with rate limiting and retry
// logic. Transient failures (429, 5xx, network errors) are retried with
// exponential backoff; other failures return immediately together with the
// response so the caller can classify them.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if err == nil && resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return resp, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff over the base wait: 1x, 2x, 4x
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.retryWait
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return resp, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
	}
	return resp, fmt.Errorf("request failed after %d attempts with status %s", maxRetries, resp.Status())
}
