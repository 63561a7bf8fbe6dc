package alphavantage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/finsight/papertrade/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const globalQuoteJSON = `{
	"Global Quote": {
		"01. symbol": "IBM",
		"02. open": "185.00",
		"03. high": "186.50",
		"04. low": "184.50",
		"05. price": "186.20",
		"06. volume": "3456789",
		"07. latest trading day": "2024-01-15",
		"08. previous close": "185.00",
		"09. change": "1.20",
		"10. change percent": "0.65%"
	}
}`

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int32) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// TestNewClient tests client creation.
func TestNewClient(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop())

	assert.NotNil(t, client)
	assert.Equal(t, "test-key", client.apiKey)
	assert.Equal(t, 25, client.GetRemainingRequests())
}

// TestRateLimiting_Daily exhausts the daily budget with the minute window disabled.
func TestRateLimiting_Daily(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop(), WithLimits(0, 25))

	for i := 0; i < 25; i++ {
		assert.Equal(t, 25-i, client.GetRemainingRequests())
		require.NoError(t, client.checkRateLimit())
	}

	err := client.checkRateLimit()
	assert.Error(t, err)
	assert.IsType(t, ErrRateLimitExceeded{}, err)
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}

func TestRateLimiting_PerMinuteWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
	client := NewClient("k", zerolog.Nop(), WithLimits(5, 25), WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		require.NoError(t, client.checkRateLimit())
		clock.t = clock.t.Add(time.Second)
	}

	err := client.checkRateLimit()
	var rl ErrRateLimitExceeded
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, "minute", rl.Scope)
	assert.Equal(t, 55*time.Second, rl.RetryAfter)

	// The first call leaves the window after a minute
	clock.t = clock.t.Add(56 * time.Second)
	assert.NoError(t, client.checkRateLimit())
}

func TestRateLimiting_DayRollover(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 15, 23, 59, 0, 0, time.UTC)}
	client := NewClient("k", zerolog.Nop(), WithLimits(0, 2), WithClock(clock.Now))

	require.NoError(t, client.checkRateLimit())
	require.NoError(t, client.checkRateLimit())
	assert.Error(t, client.checkRateLimit())

	clock.t = clock.t.Add(2 * time.Minute)
	assert.Equal(t, 2, client.GetRemainingRequests())
	assert.NoError(t, client.checkRateLimit())
}

// TestResetDailyCounter tests counter reset.
func TestResetDailyCounter(t *testing.T) {
	client := NewClient("test-key", zerolog.Nop(), WithLimits(0, 25))

	for i := 0; i < 10; i++ {
		_ = client.checkRateLimit()
	}
	assert.Equal(t, 15, client.GetRemainingRequests())

	client.ResetDailyCounter()
	assert.Equal(t, 25, client.GetRemainingRequests())
}

func TestBuildLogKey_ExcludesAPIKey(t *testing.T) {
	key := buildLogKey("GLOBAL_QUOTE", map[string]string{"symbol": "IBM", "apikey": "secret"})
	assert.Equal(t, "GLOBAL_QUOTE:symbol=IBM", key)
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"123.45", "123.45"},
		{"0", "0"},
		{"None", "0"},
		{"", "0"},
		{"-", "0"},
		{"50.5%", "50.5"},
		{"invalid", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(parseDecimal(tt.input)))
		})
	}
}

// TestParseGlobalQuote tests global quote parsing.
func TestParseGlobalQuote(t *testing.T) {
	quote, err := parseGlobalQuote([]byte(globalQuoteJSON))
	require.NoError(t, err)
	require.NotNil(t, quote)

	assert.Equal(t, "IBM", quote.Symbol)
	assert.Equal(t, "186.2", quote.Price.String())
	assert.Equal(t, "186.5", quote.High.String())
	assert.Equal(t, "184.5", quote.Low.String())
	assert.Equal(t, int64(3456789), quote.Volume)
	assert.Equal(t, "0.65", quote.ChangePercent.String())
	assert.Equal(t, 15, quote.LatestTradingDay.Day())
}

func TestParseGlobalQuote_Empty(t *testing.T) {
	quote, err := parseGlobalQuote([]byte(`{"Global Quote": {}}`))
	require.NoError(t, err)
	assert.Nil(t, quote)
}

// TestParseSymbolSearch tests symbol search parsing.
func TestParseSymbolSearch(t *testing.T) {
	jsonData := `{
		"bestMatches": [
			{
				"1. symbol": "IBM",
				"2. name": "International Business Machines Corp",
				"3. type": "Equity",
				"4. region": "United States",
				"8. currency": "USD",
				"9. matchScore": "1.0000"
			}
		]
	}`

	matches, err := parseSymbolSearch([]byte(jsonData))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	assert.Equal(t, "IBM", matches[0].Symbol)
	assert.Equal(t, "International Business Machines Corp", matches[0].Name)
	assert.Equal(t, "USD", matches[0].Currency)
	assert.Equal(t, 1.0, matches[0].MatchScore)
}

func TestCheckAPIError(t *testing.T) {
	err := checkAPIError([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute"}`))
	assert.True(t, errors.Is(err, domain.ErrRateLimited))

	err = checkAPIError([]byte(`{"Information": "Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`))
	assert.True(t, errors.Is(err, domain.ErrRateLimited))

	err = checkAPIError([]byte(`{"Error Message": "Invalid API call."}`))
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrRateLimited))

	assert.NoError(t, checkAPIError([]byte(globalQuoteJSON)))
}

func TestFetchQuote_Success(t *testing.T) {
	srv, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "IBM", r.URL.Query().Get("symbol"))
		assert.Equal(t, "k", r.URL.Query().Get("apikey"))
		_, _ = w.Write([]byte(globalQuoteJSON))
	})

	client := NewClient("k", zerolog.Nop(), WithBaseURL(srv.URL))
	quote, err := client.FetchQuote(context.Background(), "IBM")
	require.NoError(t, err)

	assert.Equal(t, "186.2", quote.Price.String())
	assert.Equal(t, "186.5", quote.DayHigh.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.Equal(t, 24, client.GetRemainingRequests())
}

func TestFetchQuote_UnknownSymbol(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Global Quote": {}}`))
	})

	client := NewClient("k", zerolog.Nop(), WithBaseURL(srv.URL))
	_, err := client.FetchQuote(context.Background(), "ZZZZ")
	assert.True(t, errors.Is(err, domain.ErrInvalidSymbol))
}

func TestFetchQuote_ErrorMessageIsUnknownSymbol(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Error Message": "Invalid API call. Please retry or visit the documentation for GLOBAL_QUOTE."}`))
	})

	client := NewClient("k", zerolog.Nop(), WithBaseURL(srv.URL))
	_, err := client.FetchQuote(context.Background(), "N0PE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidSymbol))
	assert.False(t, errors.Is(err, domain.ErrRateLimited))
}

func TestFetchQuote_UpstreamThrottle(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage!"}`))
	})

	client := NewClient("k", zerolog.Nop(), WithBaseURL(srv.URL))
	_, err := client.FetchQuote(context.Background(), "IBM")
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}

func TestFetchQuote_HTTP429(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	client := NewClient("k", zerolog.Nop(), WithBaseURL(srv.URL))
	_, err := client.FetchQuote(context.Background(), "IBM")
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}

func TestFetchQuote_BudgetExhaustedSkipsNetwork(t *testing.T) {
	srv, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(globalQuoteJSON))
	})

	client := NewClient("k", zerolog.Nop(), WithBaseURL(srv.URL), WithLimits(0, 1))
	_, err := client.FetchQuote(context.Background(), "IBM")
	require.NoError(t, err)

	_, err = client.FetchQuote(context.Background(), "IBM")
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestSearchSymbols(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SYMBOL_SEARCH", r.URL.Query().Get("function"))
		assert.Equal(t, "apple", r.URL.Query().Get("keywords"))
		_, _ = w.Write([]byte(`{"bestMatches": [{"1. symbol": "AAPL", "2. name": "Apple Inc"}]}`))
	})

	client := NewClient("k", zerolog.Nop(), WithBaseURL(srv.URL))
	matches, err := client.SearchSymbols(context.Background(), "apple")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "AAPL", matches[0].Symbol)
}
