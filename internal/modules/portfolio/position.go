// Package portfolio maintains per-user stock positions at weighted-average
// cost and commits trades against the account and position tables together.
package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsight/papertrade/internal/domain"
)

// Position is a user's holding in one symbol. Shares is always positive;
// a position that reaches zero shares is deleted.
type Position struct {
	UserID         string          `json:"-"`
	Symbol         string          `json:"symbol"`
	Shares         int64           `json:"shares"`
	AvgPrice       decimal.Decimal `json:"avg_price"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	FirstPurchased time.Time       `json:"first_purchased"`
	LastUpdated    time.Time       `json:"last_updated"`
}

// SellResult is the outcome of applying a sale to a position
type SellResult struct {
	// Remaining is nil when the sale closed the position
	Remaining    *Position
	Proceeds     decimal.Decimal
	OriginalCost decimal.Decimal
	RealizedPnL  decimal.Decimal
}

// ApplyBuy returns the position after buying shares at price.
// existing may be nil, in which case a new position is opened.
func ApplyBuy(existing *Position, userID, symbol string, shares int64, price decimal.Decimal, at time.Time) *Position {
	cost := price.Mul(decimal.NewFromInt(shares))

	if existing == nil {
		return &Position{
			UserID:         userID,
			Symbol:         symbol,
			Shares:         shares,
			AvgPrice:       price,
			TotalCost:      cost,
			FirstPurchased: at,
			LastUpdated:    at,
		}
	}

	next := *existing
	next.Shares = existing.Shares + shares
	next.TotalCost = existing.TotalCost.Add(cost)
	next.AvgPrice = next.TotalCost.Div(decimal.NewFromInt(next.Shares))
	next.LastUpdated = at
	return &next
}

// ApplySell returns the position after selling shares at price together with
// the realized P&L against the average cost.
func ApplySell(existing *Position, shares int64, price decimal.Decimal, at time.Time) (*SellResult, error) {
	if existing == nil {
		return nil, domain.ErrNoSuchPosition
	}
	if shares > existing.Shares {
		return nil, &domain.InsufficientSharesError{
			Symbol:    existing.Symbol,
			Requested: shares,
			Held:      existing.Shares,
		}
	}

	proceeds := price.Mul(decimal.NewFromInt(shares))

	// Closing the whole position releases exactly its total cost.
	originalCost := existing.TotalCost
	if shares < existing.Shares {
		originalCost = existing.TotalCost.
			Mul(decimal.NewFromInt(shares)).
			Div(decimal.NewFromInt(existing.Shares))
	}

	result := &SellResult{
		Proceeds:     proceeds,
		OriginalCost: originalCost,
		RealizedPnL:  proceeds.Sub(originalCost),
	}

	if remaining := existing.Shares - shares; remaining > 0 {
		next := *existing
		next.Shares = remaining
		next.TotalCost = existing.TotalCost.Sub(originalCost)
		next.AvgPrice = next.TotalCost.Div(decimal.NewFromInt(remaining))
		next.LastUpdated = at
		result.Remaining = &next
	}

	return result, nil
}

// CostBasisValue returns cash plus the cost basis of every position
func CostBasisValue(cash decimal.Decimal, positions []Position) decimal.Decimal {
	total := cash
	for _, p := range positions {
		total = total.Add(p.AvgPrice.Mul(decimal.NewFromInt(p.Shares)))
	}
	return total
}
