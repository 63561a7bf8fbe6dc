package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/finsight/papertrade/internal/domain"
	"github.com/shopspring/decimal"
)

// MockQuoteProvider is a mock implementation of domain.QuoteProvider for testing
type MockQuoteProvider struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	errs   map[string]error
	err    error
	calls  map[string]int
}

// NewMockQuoteProvider creates a new mock quote provider
func NewMockQuoteProvider() *MockQuoteProvider {
	return &MockQuoteProvider{
		prices: make(map[string]decimal.Decimal),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

// SetPrice sets the price returned for symbol
func (m *MockQuoteProvider) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = decimal.NewFromFloat(price)
}

// SetSymbolError makes FetchQuote fail for one symbol
func (m *MockQuoteProvider) SetSymbolError(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[symbol] = err
}

// SetError makes every FetchQuote call fail; nil clears it
func (m *MockQuoteProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times symbol was fetched
func (m *MockQuoteProvider) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

// TotalCalls returns the number of FetchQuote calls across all symbols
func (m *MockQuoteProvider) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// FetchQuote implements domain.QuoteProvider
func (m *MockQuoteProvider) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[symbol]++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	if err, ok := m.errs[symbol]; ok {
		return nil, err
	}
	price, ok := m.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidSymbol, symbol)
	}

	return &domain.Quote{
		Symbol:        symbol,
		Price:         price,
		DayHigh:       price,
		DayLow:        price,
		ChangePercent: decimal.Zero,
	}, nil
}
