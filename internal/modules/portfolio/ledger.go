package portfolio

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finsight/papertrade/internal/database"
	"github.com/finsight/papertrade/internal/domain"
	"github.com/finsight/papertrade/internal/modules/accounts"
)

// BuyCommit is the persisted state after a buy
type BuyCommit struct {
	Account  *accounts.Account
	Position *Position
	Cost     decimal.Decimal
}

// SellCommit is the persisted state after a sell
type SellCommit struct {
	Account *accounts.Account
	SellResult
}

// Ledger applies trades to the account balance and the position table in a
// single portfolio.db transaction. Transactions take the write lock up front,
// so trades of the same user are serialized and never lose updates.
type Ledger struct {
	db        *sql.DB
	accounts  *accounts.Repository
	positions *PositionRepository
	now       func() time.Time
	log       zerolog.Logger
}

// NewLedger creates a new ledger over portfolio.db
func NewLedger(db *sql.DB, accountRepo *accounts.Repository, positionRepo *PositionRepository, log zerolog.Logger) *Ledger {
	return &Ledger{
		db:        db,
		accounts:  accountRepo,
		positions: positionRepo,
		now:       time.Now,
		log:       log.With().Str("service", "ledger").Logger(),
	}
}

// SetClock overrides the time source
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// CommitBuy debits shares*price from the account and adds the shares to the
// position. Returns *domain.InsufficientBalanceError, leaving nothing
// changed, when the balance does not cover the cost.
func (l *Ledger) CommitBuy(ctx context.Context, userID, symbol string, shares int64, price decimal.Decimal) (*BuyCommit, error) {
	now := l.now()
	cost := price.Mul(decimal.NewFromInt(shares))

	var commit BuyCommit
	err := database.WithTransactionContext(ctx, l.db, func(tx *sql.Tx) error {
		acct, err := l.accounts.WithTx(tx).AdjustBalance(ctx, userID, cost.Neg(), cost, now)
		if err != nil {
			return err
		}

		positions := l.positions.WithTx(tx)
		existing, err := positions.Get(ctx, userID, symbol)
		if err != nil {
			return err
		}

		next := ApplyBuy(existing, userID, symbol, shares, price, now)
		if err := positions.Upsert(ctx, next); err != nil {
			return err
		}

		commit = BuyCommit{Account: acct, Position: next, Cost: cost}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Debug().
		Str("user_id", userID).
		Str("symbol", symbol).
		Int64("shares", shares).
		Str("cost", cost.String()).
		Msg("Buy committed")

	return &commit, nil
}

// CommitSell removes shares from the position and credits the proceeds.
// The sold cost basis is released from the account's total invested.
func (l *Ledger) CommitSell(ctx context.Context, userID, symbol string, shares int64, price decimal.Decimal) (*SellCommit, error) {
	now := l.now()

	var commit SellCommit
	err := database.WithTransactionContext(ctx, l.db, func(tx *sql.Tx) error {
		positions := l.positions.WithTx(tx)
		existing, err := positions.Get(ctx, userID, symbol)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.NoSuchPosition(symbol)
		}

		result, err := ApplySell(existing, shares, price, now)
		if err != nil {
			return err
		}

		if result.Remaining == nil {
			err = positions.Delete(ctx, userID, symbol)
		} else {
			err = positions.Upsert(ctx, result.Remaining)
		}
		if err != nil {
			return err
		}

		acct, err := l.accounts.WithTx(tx).AdjustBalance(ctx, userID, result.Proceeds, result.OriginalCost.Neg(), now)
		if err != nil {
			return err
		}

		commit = SellCommit{Account: acct, SellResult: *result}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Debug().
		Str("user_id", userID).
		Str("symbol", symbol).
		Int64("shares", shares).
		Str("realized_pnl", commit.RealizedPnL.String()).
		Msg("Sell committed")

	return &commit, nil
}
