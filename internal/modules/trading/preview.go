package trading

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/finsight/papertrade/internal/domain"
)

// Preview is a dry run of an order at the current price
type Preview struct {
	Side        domain.TradeSide `json:"side"`
	Symbol      string           `json:"symbol"`
	Quantity    int64            `json:"quantity"`
	Price       decimal.Decimal  `json:"price"`
	Total       decimal.Decimal  `json:"total"`
	CashBalance decimal.Decimal  `json:"cash_balance"`
	HeldShares  int64            `json:"held_shares"`
	CanExecute  bool             `json:"can_execute"`
	Reason      string           `json:"reason,omitempty"`
	StalePrice  bool             `json:"stale_price"`
}

// Preview prices an order and checks it against the user's balance or
// holdings without changing anything. A user without an account is
// previewed against the starting balance.
func (s *Service) Preview(ctx context.Context, userID string, side domain.TradeSide, symbol string, quantity int64) (*Preview, error) {
	if !side.IsValid() {
		return nil, domain.InvalidInput("side must be BUY or SELL")
	}
	symbol, err := validateOrder(userID, symbol, quantity)
	if err != nil {
		return nil, err
	}

	cash := domain.StartingCash
	acct, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acct != nil {
		cash = acct.CashBalance
	}

	var held int64
	pos, err := s.positions.Get(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}
	if pos != nil {
		held = pos.Shares
	}

	preview := &Preview{
		Side:        side,
		Symbol:      symbol,
		Quantity:    quantity,
		CashBalance: cash,
		HeldShares:  held,
	}

	// Selling something not held fails without spending a quote
	if side == domain.TradeSideSell && held == 0 {
		preview.Reason = domain.NoSuchPosition(symbol).Error()
		return preview, nil
	}

	quote, err := s.price(ctx, symbol)
	if err != nil {
		return nil, err
	}
	preview.Price = quote.Price
	preview.Total = quote.Price.Mul(decimal.NewFromInt(quantity))
	preview.StalePrice = quote.Stale

	var reason error
	switch side {
	case domain.TradeSideBuy:
		if preview.Total.GreaterThan(cash) {
			reason = &domain.InsufficientBalanceError{Required: preview.Total, Available: cash}
		}
	case domain.TradeSideSell:
		if quantity > held {
			reason = &domain.InsufficientSharesError{Symbol: symbol, Requested: quantity, Held: held}
		}
	}

	preview.CanExecute = reason == nil
	if reason != nil {
		preview.Reason = reason.Error()
	}
	return preview, nil
}
