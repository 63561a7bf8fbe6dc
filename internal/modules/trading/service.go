// Package trading executes simulated market orders: every trade is priced
// server-side from the quote cache, committed against the ledger, then
// logged and snapshotted on a best-effort basis.
package trading

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finsight/papertrade/internal/domain"
	"github.com/finsight/papertrade/internal/events"
	"github.com/finsight/papertrade/internal/modules/accounts"
	"github.com/finsight/papertrade/internal/modules/ledger"
	"github.com/finsight/papertrade/internal/modules/portfolio"
	"github.com/finsight/papertrade/internal/modules/snapshots"
)

// AccountResolver resolves (and lazily creates) accounts
type AccountResolver interface {
	GetOrCreate(ctx context.Context, userID string) (*accounts.Account, error)
	Get(ctx context.Context, userID string) (*accounts.Account, error)
}

// PositionReader reads a single position
type PositionReader interface {
	Get(ctx context.Context, userID, symbol string) (*portfolio.Position, error)
}

// Committer applies trades to balance and positions atomically
type Committer interface {
	CommitBuy(ctx context.Context, userID, symbol string, shares int64, price decimal.Decimal) (*portfolio.BuyCommit, error)
	CommitSell(ctx context.Context, userID, symbol string, shares int64, price decimal.Decimal) (*portfolio.SellCommit, error)
}

// TransactionLogger records executed trades without failing them
type TransactionLogger interface {
	AppendBestEffort(ctx context.Context, t *ledger.Transaction) string
}

// SnapshotRecorder records post-trade snapshots without failing the trade
type SnapshotRecorder interface {
	RecordBestEffort(ctx context.Context, userID string) *snapshots.Snapshot
}

// Service is the trade orchestrator
type Service struct {
	accounts  AccountResolver
	positions PositionReader
	ledger    Committer
	prices    domain.PriceSource
	txlog     TransactionLogger
	snapshots SnapshotRecorder
	events    events.Emitter
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates a new trading service
func NewService(
	accountResolver AccountResolver,
	positions PositionReader,
	committer Committer,
	prices domain.PriceSource,
	txlog TransactionLogger,
	snapshotRecorder SnapshotRecorder,
	emitter events.Emitter,
	log zerolog.Logger,
) *Service {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Service{
		accounts:  accountResolver,
		positions: positions,
		ledger:    committer,
		prices:    prices,
		txlog:     txlog,
		snapshots: snapshotRecorder,
		events:    emitter,
		now:       time.Now,
		log:       log.With().Str("service", "trading").Logger(),
	}
}

// SetClock overrides the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func validateOrder(userID, symbol string, quantity int64) (string, error) {
	if userID == "" {
		return "", domain.ErrUnauthorized
	}
	symbol = domain.NormalizeSymbol(symbol)
	if err := domain.ValidateSymbol(symbol); err != nil {
		return "", err
	}
	if err := domain.ValidateQuantity(quantity); err != nil {
		return "", err
	}
	return symbol, nil
}

// price looks up the execution price. Only fresh or documented-stale cache
// entries and live provider quotes are ever used.
func (s *Service) price(ctx context.Context, symbol string) (*domain.Quote, error) {
	quote, err := s.prices.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if !quote.Price.IsPositive() {
		return nil, domain.InvalidInput("no valid price for %s", symbol)
	}
	return quote, nil
}
