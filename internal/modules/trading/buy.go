package trading

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsight/papertrade/internal/domain"
	"github.com/finsight/papertrade/internal/events"
	"github.com/finsight/papertrade/internal/modules/ledger"
	"github.com/finsight/papertrade/internal/modules/portfolio"
)

// BuyResult is returned by a successful buy
type BuyResult struct {
	TransactionID string              `json:"transaction_id,omitempty"`
	Symbol        string              `json:"symbol"`
	Quantity      int64               `json:"quantity"`
	Price         decimal.Decimal     `json:"price"`
	TotalCost     decimal.Decimal     `json:"total_cost"`
	NewBalance    decimal.Decimal     `json:"new_balance"`
	Position      *portfolio.Position `json:"position"`
	StalePrice    bool                `json:"stale_price"`
	ExecutedAt    time.Time           `json:"executed_at"`
}

// Buy purchases quantity shares of symbol at the current server-side price.
// Nothing is changed unless the whole purchase commits; logging and
// snapshotting after the commit never fail the trade.
func (s *Service) Buy(ctx context.Context, userID, symbol string, quantity int64) (*BuyResult, error) {
	symbol, err := validateOrder(userID, symbol, quantity)
	if err != nil {
		return nil, err
	}

	acct, err := s.accounts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	quote, err := s.price(ctx, symbol)
	if err != nil {
		return nil, err
	}

	totalCost := quote.Price.Mul(decimal.NewFromInt(quantity))
	if totalCost.GreaterThan(acct.CashBalance) {
		return nil, &domain.InsufficientBalanceError{Required: totalCost, Available: acct.CashBalance}
	}

	// The commit re-checks the balance atomically; a concurrent trade may
	// have spent it since the read above.
	commit, err := s.ledger.CommitBuy(ctx, userID, symbol, quantity, quote.Price)
	if err != nil {
		return nil, err
	}

	executedAt := s.now()
	txID := s.txlog.AppendBestEffort(ctx, &ledger.Transaction{
		UserID:      userID,
		Side:        domain.TradeSideBuy,
		Symbol:      symbol,
		Shares:      quantity,
		Price:       quote.Price,
		TotalAmount: totalCost,
		ExecutedAt:  executedAt,
	})
	s.snapshots.RecordBestEffort(ctx, userID)

	s.log.Info().
		Str("user_id", userID).
		Str("symbol", symbol).
		Int64("quantity", quantity).
		Str("price", quote.Price.String()).
		Str("total_cost", domain.FormatUSD(totalCost)).
		Bool("stale_price", quote.Stale).
		Msg("Buy executed")

	s.events.Emit(events.TradeExecuted, "trading", userID, &events.TradeExecutedData{
		TransactionID: txID,
		Side:          string(domain.TradeSideBuy),
		Symbol:        symbol,
		Shares:        quantity,
		Price:         quote.Price,
		TotalAmount:   totalCost,
		NewBalance:    commit.Account.CashBalance,
		StalePrice:    quote.Stale,
	})

	return &BuyResult{
		TransactionID: txID,
		Symbol:        symbol,
		Quantity:      quantity,
		Price:         quote.Price,
		TotalCost:     totalCost,
		NewBalance:    commit.Account.CashBalance,
		Position:      commit.Position,
		StalePrice:    quote.Stale,
		ExecutedAt:    executedAt,
	}, nil
}
