package snapshots

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/finsight/papertrade/internal/domain"
	"github.com/finsight/papertrade/internal/modules/accounts"
	"github.com/finsight/papertrade/pkg/formulas"
)

// AccountResolver resolves (and lazily creates) accounts
type AccountResolver interface {
	GetOrCreate(ctx context.Context, userID string) (*accounts.Account, error)
}

// Service serves value history and performance figures
type Service struct {
	accounts AccountResolver
	repo     *Repository
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates a new snapshot history service
func NewService(accountResolver AccountResolver, repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		accounts: accountResolver,
		repo:     repo,
		now:      time.Now,
		log:      log.With().Str("service", "snapshots").Logger(),
	}
}

// SetClock overrides the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// History returns up to limit of the user's most recent snapshots, oldest
// first. A user with fewer than two stored points gets the history prefixed with a synthetic
// point one day before the first real one, valued at the starting balance,
// so a chart always has a line to draw.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]Snapshot, error) {
	if _, err := s.accounts.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	history, err := s.repo.History(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	if len(history) >= 2 {
		return history, nil
	}
	// A small limit can truncate a real history; seed only when it is short
	stored, err := s.repo.Count(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stored >= 2 {
		return history, nil
	}

	anchor := s.now()
	if len(history) == 1 {
		anchor = history[0].RecordedAt
	}
	seed := Snapshot{
		CashBalance:    domain.StartingCash,
		PortfolioValue: domain.StartingCash,
		RecordedAt:     anchor.Add(-seedOffset),
		Synthetic:      true,
	}
	return append([]Snapshot{seed}, history...), nil
}

// Performance summarizes the user's value history
func (s *Service) Performance(ctx context.Context, userID string) (*Performance, error) {
	history, err := s.History(ctx, userID, MaxHistoryLimit)
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(history))
	for i, snap := range history {
		values[i] = snap.PortfolioValue.InexactFloat64()
	}
	returns := formulas.Returns(values)

	perf := &Performance{
		Points:         len(values),
		StartValue:     values[0],
		EndValue:       values[len(values)-1],
		TotalReturn:    formulas.TotalReturn(values),
		MeanStepReturn: formulas.Mean(returns),
		StepVolatility: formulas.StdDev(returns),
		MaxDrawdown:    formulas.MaxDrawdown(values),
	}
	if sma := formulas.SMASeries(values, movingAveragePeriod); sma != nil {
		perf.MovingAverage = sma
		perf.MovingAvgPeriod = movingAveragePeriod
	}
	return perf, nil
}
