// Package domain holds the types and errors shared by the ledger modules,
// the quote cache and the HTTP layer.
package domain

import (
	"strings"
)

// TradeSide is BUY or SELL
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// IsValid reports whether s is a known side
func (s TradeSide) IsValid() bool {
	return s == TradeSideBuy || s == TradeSideSell
}

const (
	maxSymbolLength = 12
	// MaxTradeQuantity caps a single order
	MaxTradeQuantity = 1_000_000
)

// NormalizeSymbol trims and upper-cases a ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidateSymbol checks a normalized ticker
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return InvalidInput("symbol is required")
	}
	if len(symbol) > maxSymbolLength {
		return InvalidInput("symbol %q is longer than %d characters", symbol, maxSymbolLength)
	}
	for _, r := range symbol {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '-') {
			return InvalidInput("symbol %q contains invalid character %q", symbol, r)
		}
	}
	return nil
}

// ValidateQuantity checks a share count
func ValidateQuantity(quantity int64) error {
	if quantity < 1 {
		return InvalidInput("quantity must be a whole number of at least 1, got %d", quantity)
	}
	if quantity > MaxTradeQuantity {
		return InvalidInput("quantity %d exceeds the maximum of %d", quantity, MaxTradeQuantity)
	}
	return nil
}
