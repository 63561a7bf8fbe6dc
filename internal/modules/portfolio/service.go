package portfolio

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finsight/papertrade/internal/modules/accounts"
	"github.com/finsight/papertrade/internal/modules/quotes"
)

// AccountResolver resolves (and lazily creates) accounts
type AccountResolver interface {
	GetOrCreate(ctx context.Context, userID string) (*accounts.Account, error)
}

// BatchPricer prices many symbols within the provider budget
type BatchPricer interface {
	GetPrices(ctx context.Context, symbols []string) *quotes.BatchResult
}

// PositionView is a position with optional live valuation
type PositionView struct {
	Position
	CurrentPrice     *decimal.Decimal `json:"current_price,omitempty"`
	MarketValue      *decimal.Decimal `json:"market_value,omitempty"`
	UnrealizedPnL    *decimal.Decimal `json:"unrealized_pnl,omitempty"`
	UnrealizedPnLPct *decimal.Decimal `json:"unrealized_pnl_pct,omitempty"`
	StalePrice       bool             `json:"stale_price,omitempty"`
}

// Summary is the user's account and positions
type Summary struct {
	Account        *accounts.Account `json:"account"`
	Positions      []PositionView    `json:"positions"`
	CostBasisValue decimal.Decimal   `json:"cost_basis_value"`

	// Populated only for live valuations
	Live          bool             `json:"live"`
	MarketValue   *decimal.Decimal `json:"market_value,omitempty"`
	UnrealizedPnL *decimal.Decimal `json:"unrealized_pnl,omitempty"`
	Partial       bool             `json:"partial"`
	Missing       []string         `json:"missing,omitempty"`
}

// Service answers portfolio queries
type Service struct {
	accounts  AccountResolver
	positions *PositionRepository
	prices    BatchPricer
	log       zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(accountResolver AccountResolver, positions *PositionRepository, prices BatchPricer, log zerolog.Logger) *Service {
	return &Service{
		accounts:  accountResolver,
		positions: positions,
		prices:    prices,
		log:       log.With().Str("service", "portfolio").Logger(),
	}
}

// Positions returns the user's positions
func (s *Service) Positions(ctx context.Context, userID string) ([]Position, error) {
	return s.positions.GetAll(ctx, userID)
}

// Summary returns the account and positions valued at cost. When live is
// set, positions are also valued with a bounded batch price fetch; symbols
// that could not be priced are listed in Missing and mark the result Partial.
func (s *Service) Summary(ctx context.Context, userID string, live bool) (*Summary, error) {
	acct, err := s.accounts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	positions, err := s.positions.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Account:        acct,
		Positions:      make([]PositionView, len(positions)),
		CostBasisValue: CostBasisValue(acct.CashBalance, positions),
	}
	for i, p := range positions {
		summary.Positions[i] = PositionView{Position: p}
	}

	if live && len(positions) > 0 && s.prices != nil {
		s.valueLive(ctx, summary)
	}
	return summary, nil
}

func (s *Service) valueLive(ctx context.Context, summary *Summary) {
	symbols := make([]string, len(summary.Positions))
	for i, p := range summary.Positions {
		symbols[i] = p.Symbol
	}

	batch := s.prices.GetPrices(ctx, symbols)
	summary.Live = true
	summary.Partial = batch.Partial
	summary.Missing = batch.Missing

	marketValue := summary.Account.CashBalance
	unrealized := decimal.Zero
	for i := range summary.Positions {
		view := &summary.Positions[i]
		quote, ok := batch.Prices[view.Symbol]
		if !ok {
			continue
		}

		shares := decimal.NewFromInt(view.Shares)
		value := quote.Price.Mul(shares)
		pnl := value.Sub(view.TotalCost)

		view.CurrentPrice = &quote.Price
		view.MarketValue = &value
		view.UnrealizedPnL = &pnl
		view.StalePrice = quote.Stale
		if view.TotalCost.IsPositive() {
			pct := pnl.Div(view.TotalCost).Mul(decimal.NewFromInt(100)).Round(2)
			view.UnrealizedPnLPct = &pct
		}

		marketValue = marketValue.Add(value)
		unrealized = unrealized.Add(pnl)
	}

	// A total over a partial price set would understate the portfolio.
	if len(batch.Missing) == 0 {
		summary.MarketValue = &marketValue
		summary.UnrealizedPnL = &unrealized
	}

	if batch.Partial {
		s.log.Warn().
			Str("user_id", summary.Account.UserID).
			Strs("missing", batch.Missing).
			Msg("Live valuation is partial")
	}
}
