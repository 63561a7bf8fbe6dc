package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across modules. Handlers map them to HTTP statuses
// with errors.Is / errors.As.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNoSuchPosition   = errors.New("no such position")
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// Provider signals, translated by the quote cache
	ErrRateLimited   = errors.New("quote provider rate limited")
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// InvalidInput wraps ErrInvalidInput with a client-facing message
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// NoSuchPosition wraps ErrNoSuchPosition with the symbol
func NoSuchPosition(symbol string) error {
	return fmt.Errorf("%w: %s", ErrNoSuchPosition, symbol)
}

// InsufficientBalanceError is returned when a buy costs more than the cash on hand
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %s, available %s",
		FormatUSD(e.Required), FormatUSD(e.Available))
}

// Shortfall is the amount of cash missing to cover the order
func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Available)
}

// InsufficientSharesError is returned when a sell asks for more shares than are held
type InsufficientSharesError struct {
	Symbol    string
	Requested int64
	Held      int64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares of %s: requested %d, held %d", e.Symbol, e.Requested, e.Held)
}
