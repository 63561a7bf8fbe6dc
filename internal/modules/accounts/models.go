// Package accounts owns the per-user cash account: lazy creation with the
// starting balance and atomic balance adjustments.
package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a user's cash account
type Account struct {
	UserID        string          `json:"user_id"`
	CashBalance   decimal.Decimal `json:"cash_balance"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
