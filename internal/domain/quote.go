package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a market price for a symbol as seen by the ledger
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	DayHigh       decimal.Decimal `json:"day_high"`
	DayLow        decimal.Decimal `json:"day_low"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	FetchedAt     time.Time       `json:"fetched_at"`
	// Stale is set when the quote was served past its TTL because the
	// provider was rate limited
	Stale bool `json:"stale"`
}

// QuoteProvider fetches a live quote. Implementations return errors wrapping
// ErrRateLimited or ErrInvalidSymbol for those provider signals.
type QuoteProvider interface {
	FetchQuote(ctx context.Context, symbol string) (*Quote, error)
}

// PriceSource resolves an authoritative price for trade execution.
// Fails with ErrQuoteUnavailable when no price can be obtained.
type PriceSource interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}
