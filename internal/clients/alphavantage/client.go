// Package alphavantage provides a client for the Alpha Vantage quote API.
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/finsight/papertrade/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the Alpha Vantage query endpoint
	DefaultBaseURL = "https://www.alphavantage.co/query"

	// Free tier budget
	DefaultCallsPerMinute = 5
	DefaultCallsPerDay    = 25
)

// ErrRateLimitExceeded is returned when the local budget is spent or the
// API answers with a throttling notice.
type ErrRateLimitExceeded struct {
	Scope      string // "minute", "daily" or "upstream"
	RetryAfter time.Duration
}

func (e ErrRateLimitExceeded) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("alpha vantage %s rate limit exceeded, retry after %s", e.Scope, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("alpha vantage %s rate limit exceeded", e.Scope)
}

// Is lets callers match the shared provider signal
func (e ErrRateLimitExceeded) Is(target error) bool {
	return target == domain.ErrRateLimited
}

// ErrSymbolNotFound is returned when the API has no quote for a symbol
type ErrSymbolNotFound struct {
	Symbol string
}

func (e ErrSymbolNotFound) Error() string {
	return fmt.Sprintf("alpha vantage has no quote for symbol %s", e.Symbol)
}

// Is lets callers match the shared provider signal
func (e ErrSymbolNotFound) Is(target error) bool {
	return target == domain.ErrInvalidSymbol
}

// ErrAPIMessage is an "Error Message" body. The API sends it for invalid
// calls, including unknown or malformed symbols.
type ErrAPIMessage struct {
	Message string
}

func (e ErrAPIMessage) Error() string {
	return "alpha vantage error: " + e.Message
}

// Client talks to Alpha Vantage and enforces the per-minute and daily budget
// locally so exhausted budgets fail without a network call.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time

	mu             sync.Mutex
	callsPerMinute int
	callsPerDay    int
	dailyUsed      int
	day            string
	window         []time.Time
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the API endpoint
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimits overrides the call budget. Zero disables a limit.
func WithLimits(perMinute, perDay int) Option {
	return func(c *Client) {
		c.callsPerMinute = perMinute
		c.callsPerDay = perDay
	}
}

// WithClock overrides the time source used by the rate limiter
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a new Alpha Vantage client.
func NewClient(apiKey string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:         apiKey,
		baseURL:        DefaultBaseURL,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		log:            log.With().Str("client", "alphavantage").Logger(),
		now:            time.Now,
		callsPerMinute: DefaultCallsPerMinute,
		callsPerDay:    DefaultCallsPerDay,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.day = c.now().UTC().Format("2006-01-02")
	return c
}

// GetRemainingRequests returns the calls left in today's budget
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rollDayLocked()
	if c.callsPerDay <= 0 {
		return -1
	}
	return c.callsPerDay - c.dailyUsed
}

// ResetDailyCounter clears the daily usage
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dailyUsed = 0
}

func (c *Client) rollDayLocked() {
	today := c.now().UTC().Format("2006-01-02")
	if today != c.day {
		c.day = today
		c.dailyUsed = 0
	}
}

// checkRateLimit reserves one call or returns ErrRateLimitExceeded
func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rollDayLocked()
	now := c.now()

	if c.callsPerDay > 0 && c.dailyUsed >= c.callsPerDay {
		midnight := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
		return ErrRateLimitExceeded{Scope: "daily", RetryAfter: midnight.Sub(now)}
	}

	if c.callsPerMinute > 0 {
		cutoff := now.Add(-time.Minute)
		kept := c.window[:0]
		for _, ts := range c.window {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		c.window = kept

		if len(c.window) >= c.callsPerMinute {
			return ErrRateLimitExceeded{Scope: "minute", RetryAfter: c.window[0].Add(time.Minute).Sub(now)}
		}
		c.window = append(c.window, now)
	}

	c.dailyUsed++
	return nil
}

// buildURL assembles the request URL with sorted parameters
func (c *Client) buildURL(function string, params map[string]string) string {
	q := url.Values{}
	q.Set("function", function)
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("apikey", c.apiKey)
	return c.baseURL + "?" + q.Encode()
}

// buildLogKey renders a request for logs without the API key
func buildLogKey(function string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "apikey" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(function)
	for _, k := range keys {
		b.WriteString(":")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params[k])
	}
	return b.String()
}

// doRequest performs a rate-limited GET and returns the body after checking
// for API-level errors.
func (c *Client) doRequest(ctx context.Context, function string, params map[string]string) ([]byte, error) {
	if err := c.checkRateLimit(); err != nil {
		c.log.Warn().Err(err).Str("request", buildLogKey(function, params)).Msg("Local rate limit reached")
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(function, params), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alpha vantage request failed: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("request", buildLogKey(function, params)).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Alpha Vantage response")

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimitExceeded{Scope: "upstream", RetryAfter: time.Minute}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alpha vantage returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if err := checkAPIError(body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkAPIError detects throttling notices and error messages that the API
// returns with a 200 status.
func checkAPIError(body []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	for _, key := range []string{"Note", "Information"} {
		if raw, ok := probe[key]; ok {
			var msg string
			_ = json.Unmarshal(raw, &msg)
			if msg == "" || strings.Contains(strings.ToLower(msg), "rate limit") ||
				strings.Contains(msg, "Thank you") || strings.Contains(strings.ToLower(msg), "call frequency") {
				return ErrRateLimitExceeded{Scope: "upstream", RetryAfter: time.Minute}
			}
			return fmt.Errorf("alpha vantage: %s", msg)
		}
	}

	if raw, ok := probe["Error Message"]; ok {
		var msg string
		_ = json.Unmarshal(raw, &msg)
		return ErrAPIMessage{Message: msg}
	}

	return nil
}

// GetGlobalQuote fetches the latest quote for symbol
func (c *Client) GetGlobalQuote(ctx context.Context, symbol string) (*GlobalQuote, error) {
	body, err := c.doRequest(ctx, "GLOBAL_QUOTE", map[string]string{"symbol": symbol})
	if err != nil {
		var apiErr ErrAPIMessage
		if errors.As(err, &apiErr) {
			return nil, ErrSymbolNotFound{Symbol: symbol}
		}
		return nil, err
	}

	quote, err := parseGlobalQuote(body)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}
	return quote, nil
}

// SearchSymbols looks up tickers matching keywords
func (c *Client) SearchSymbols(ctx context.Context, keywords string) ([]SymbolMatch, error) {
	body, err := c.doRequest(ctx, "SYMBOL_SEARCH", map[string]string{"keywords": keywords})
	if err != nil {
		return nil, err
	}
	return parseSymbolSearch(body)
}

// FetchQuote implements domain.QuoteProvider
func (c *Client) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	gq, err := c.GetGlobalQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if !gq.Price.IsPositive() {
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}

	return &domain.Quote{
		Symbol:        symbol,
		Price:         gq.Price,
		DayHigh:       gq.High,
		DayLow:        gq.Low,
		ChangePercent: gq.ChangePercent,
	}, nil
}
