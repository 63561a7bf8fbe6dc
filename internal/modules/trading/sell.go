package trading

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsight/papertrade/internal/domain"
	"github.com/finsight/papertrade/internal/events"
	"github.com/finsight/papertrade/internal/modules/ledger"
)

// SellResult is returned by a successful sell
type SellResult struct {
	TransactionID   string          `json:"transaction_id,omitempty"`
	Symbol          string          `json:"symbol"`
	Quantity        int64           `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	Proceeds        decimal.Decimal `json:"proceeds"`
	ProfitLoss      decimal.Decimal `json:"profit_loss"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	RemainingShares int64           `json:"remaining_shares"`
	StalePrice      bool            `json:"stale_price"`
	ExecutedAt      time.Time       `json:"executed_at"`
}

// Sell sells quantity shares of symbol at the current server-side price and
// realizes the P&L against the position's average cost.
func (s *Service) Sell(ctx context.Context, userID, symbol string, quantity int64) (*SellResult, error) {
	symbol, err := validateOrder(userID, symbol, quantity)
	if err != nil {
		return nil, err
	}

	pos, err := s.positions.Get(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, domain.NoSuchPosition(symbol)
	}
	if pos.Shares < quantity {
		return nil, &domain.InsufficientSharesError{Symbol: symbol, Requested: quantity, Held: pos.Shares}
	}

	quote, err := s.price(ctx, symbol)
	if err != nil {
		return nil, err
	}

	commit, err := s.ledger.CommitSell(ctx, userID, symbol, quantity, quote.Price)
	if err != nil {
		return nil, err
	}

	var remaining int64
	if commit.Remaining != nil {
		remaining = commit.Remaining.Shares
	}

	executedAt := s.now()
	pnl := commit.RealizedPnL
	txID := s.txlog.AppendBestEffort(ctx, &ledger.Transaction{
		UserID:      userID,
		Side:        domain.TradeSideSell,
		Symbol:      symbol,
		Shares:      quantity,
		Price:       quote.Price,
		TotalAmount: commit.Proceeds,
		RealizedPnL: &pnl,
		ExecutedAt:  executedAt,
	})
	s.snapshots.RecordBestEffort(ctx, userID)

	s.log.Info().
		Str("user_id", userID).
		Str("symbol", symbol).
		Int64("quantity", quantity).
		Str("price", quote.Price.String()).
		Str("proceeds", domain.FormatUSD(commit.Proceeds)).
		Str("profit_loss", domain.FormatUSD(pnl)).
		Bool("stale_price", quote.Stale).
		Msg("Sell executed")

	s.events.Emit(events.TradeExecuted, "trading", userID, &events.TradeExecutedData{
		TransactionID: txID,
		Side:          string(domain.TradeSideSell),
		Symbol:        symbol,
		Shares:        quantity,
		Price:         quote.Price,
		TotalAmount:   commit.Proceeds,
		RealizedPnL:   &pnl,
		NewBalance:    commit.Account.CashBalance,
		StalePrice:    quote.Stale,
	})

	return &SellResult{
		TransactionID:   txID,
		Symbol:          symbol,
		Quantity:        quantity,
		Price:           quote.Price,
		Proceeds:        commit.Proceeds,
		ProfitLoss:      pnl,
		NewBalance:      commit.Account.CashBalance,
		RemainingShares: remaining,
		StalePrice:      quote.Stale,
		ExecutedAt:      executedAt,
	}, nil
}
