// Package ledger keeps the append-only log of executed trades.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsight/papertrade/internal/domain"
)

// Transaction is one executed trade
type Transaction struct {
	ID          string           `json:"id"`
	UserID      string           `json:"-"`
	Side        domain.TradeSide `json:"side"`
	Symbol      string           `json:"symbol"`
	Shares      int64            `json:"shares"`
	Price       decimal.Decimal  `json:"price"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	// RealizedPnL is set for sells only
	RealizedPnL *decimal.Decimal `json:"realized_pnl,omitempty"`
	ExecutedAt  time.Time        `json:"executed_at"`
}

// HistoryFilter narrows a history query
type HistoryFilter struct {
	Symbol string
	Side   domain.TradeSide
	Limit  int
}

const (
	// DefaultHistoryLimit is used when no limit is given
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps any requested limit
	MaxHistoryLimit = 500
)

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	}
	return limit
}
