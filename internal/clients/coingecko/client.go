// Package coingecko provides crypto spot prices from the CoinGecko public API
// with persistent caching.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/finsight/papertrade/internal/clientdata"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the public API root
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// maxIDs bounds a single request
const maxIDs = 25

// CoinPrice is the USD price of one coin
type CoinPrice struct {
	ID           string          `json:"id" msgpack:"id"`
	USD          decimal.Decimal `json:"usd" msgpack:"usd"`
	Change24hPct decimal.Decimal `json:"usd_24h_change" msgpack:"usd_24h_change"`
}

// Prices is a SimplePrice result
type Prices struct {
	Coins     []CoinPrice `json:"coins" msgpack:"coins"`
	FetchedAt time.Time   `json:"fetched_at" msgpack:"fetched_at"`
	Stale     bool        `json:"stale" msgpack:"-"`
}

// Client for api.coingecko.com
type Client struct {
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
	now       func() time.Time
}

// NewClient creates a new CoinGecko client.
// cacheRepo is optional - if nil, caching is disabled
func NewClient(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "coingecko").Logger(),
		cacheRepo: cacheRepo,
		now:       time.Now,
	}
}

// normalizeIDs lower-cases, de-duplicates and sorts coin ids so equivalent
// requests share a cache key.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SimplePrice returns USD prices and 24h change for coin ids.
// If the API fails, stale cached data is returned when available.
func (c *Client) SimplePrice(ctx context.Context, ids []string) (*Prices, error) {
	ids = normalizeIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one coin id is required")
	}
	if len(ids) > maxIDs {
		return nil, fmt.Errorf("at most %d coin ids per request, got %d", maxIDs, len(ids))
	}
	cacheKey := strings.Join(ids, ",")

	if c.cacheRepo != nil {
		var cached Prices
		entry, err := c.cacheRepo.GetIfFresh(clientdata.TableCryptoPrices, cacheKey, &cached)
		if err == nil && entry != nil {
			c.log.Debug().Str("ids", cacheKey).Msg("Cache hit")
			return &cached, nil
		}
	}

	prices, err := c.fetch(ctx, ids)
	if err != nil {
		if stale, ok := c.getStaleFromCache(cacheKey); ok {
			c.log.Warn().
				Err(err).
				Str("ids", cacheKey).
				Time("fetched_at", stale.FetchedAt).
				Msg("API failed, using stale cached prices")
			return stale, nil
		}
		return nil, err
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableCryptoPrices, cacheKey, prices, clientdata.TTLCryptoPrice); err != nil {
			c.log.Warn().Err(err).Str("ids", cacheKey).Msg("Failed to cache crypto prices")
		}
	}

	return prices, nil
}

func (c *Client) fetch(ctx context.Context, ids []string) (*Prices, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	reqURL := c.baseURL + "/simple/price?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var body map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	prices := &Prices{FetchedAt: c.now()}
	for _, id := range ids {
		fields, ok := body[id]
		if !ok {
			continue
		}
		usd, ok := fields["usd"]
		if !ok {
			continue
		}
		prices.Coins = append(prices.Coins, CoinPrice{
			ID:           id,
			USD:          usd,
			Change24hPct: fields["usd_24h_change"],
		})
	}

	if len(prices.Coins) == 0 {
		return nil, fmt.Errorf("no prices returned for %s", strings.Join(ids, ","))
	}
	return prices, nil
}

func (c *Client) getStaleFromCache(cacheKey string) (*Prices, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}
	var cached Prices
	entry, err := c.cacheRepo.Get(clientdata.TableCryptoPrices, cacheKey, &cached)
	if err != nil || entry == nil {
		return nil, false
	}
	cached.Stale = true
	return &cached, true
}
