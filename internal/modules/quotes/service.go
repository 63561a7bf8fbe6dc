// Package quotes provides the shared quote cache: TTL-bounded price lookups
// with stale fallback under provider rate limiting, and bounded batch fetches.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finsight/papertrade/internal/domain"
	"github.com/finsight/papertrade/internal/events"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Config controls cache freshness and batch fetching
type Config struct {
	TTL          time.Duration // Entries younger than this are served without a provider call
	FetchTimeout time.Duration // Bound on one provider call

	BatchMaxFetches int           // Provider calls allowed per batch
	BatchDelay      time.Duration // Spacing between provider calls in a batch
	BatchBudget     time.Duration // Wall-clock budget for a whole batch
}

// DefaultConfig matches a 5 calls/minute provider
func DefaultConfig() Config {
	return Config{
		TTL:             5 * time.Minute,
		FetchTimeout:    10 * time.Second,
		BatchMaxFetches: 5,
		BatchDelay:      12 * time.Second,
		BatchBudget:     60 * time.Second,
	}
}

// Service is the quote cache
type Service struct {
	provider domain.QuoteProvider
	store    Store
	events   events.Emitter
	cfg      Config
	log      zerolog.Logger
	group    singleflight.Group

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService creates a quote cache over provider and store
func NewService(provider domain.QuoteProvider, store Store, emitter events.Emitter, cfg Config, log zerolog.Logger) *Service {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Service{
		provider: provider,
		store:    store,
		events:   emitter,
		cfg:      cfg,
		log:      log.With().Str("service", "quotes").Logger(),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GetPrice returns the current price for symbol or fails with ErrQuoteUnavailable
func (s *Service) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q, err := s.GetQuote(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Price, nil
}

// GetQuote returns a fresh cached quote, a newly fetched one, or a stale one
// when the provider is rate limited or unreachable. Without any cached entry
// a provider failure yields ErrQuoteUnavailable.
func (s *Service) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if err := domain.ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	cached := s.lookup(ctx, symbol)
	if cached != nil && s.isFresh(cached) {
		return cached, nil
	}

	quote, err := s.fetch(ctx, symbol)
	if err == nil {
		return quote, nil
	}
	return s.fallback(symbol, cached, err)
}

func (s *Service) lookup(ctx context.Context, symbol string) *domain.Quote {
	q, err := s.store.Get(ctx, symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote cache read failed")
		return nil
	}
	return q
}

func (s *Service) isFresh(q *domain.Quote) bool {
	return s.now().Sub(q.FetchedAt) < s.cfg.TTL
}

// fetch calls the provider once per symbol even under concurrent misses and
// stores the result. The shared call is detached from the caller that
// started it; each caller stops waiting when its own ctx is done.
func (s *Service) fetch(ctx context.Context, symbol string) (*domain.Quote, error) {
	ch := s.group.DoChan(symbol, func() (interface{}, error) {
		sharedCtx := context.WithoutCancel(ctx)
		fetchCtx, cancel := context.WithTimeout(sharedCtx, s.cfg.FetchTimeout)
		defer cancel()

		q, err := s.provider.FetchQuote(fetchCtx, symbol)
		if err != nil {
			return nil, err
		}
		if q == nil || !q.Price.IsPositive() {
			return nil, fmt.Errorf("provider returned no usable price for %s", symbol)
		}

		stored := *q
		stored.Symbol = symbol
		stored.FetchedAt = s.now()
		stored.Stale = false

		// The fetched price is returned even if caching it fails
		if err := s.store.Put(sharedCtx, &stored); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache quote")
		}
		return &stored, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	q := *res.Val.(*domain.Quote)
	return &q, nil
}

// fallback decides what a failed fetch turns into
func (s *Service) fallback(symbol string, cached *domain.Quote, fetchErr error) (*domain.Quote, error) {
	if errors.Is(fetchErr, domain.ErrInvalidSymbol) {
		return nil, domain.InvalidInput("unknown symbol %s", symbol)
	}

	if cached == nil {
		s.log.Error().Err(fetchErr).Str("symbol", symbol).Msg("Quote unavailable and nothing cached")
		return nil, fmt.Errorf("%w for %s: %w", domain.ErrQuoteUnavailable, symbol, fetchErr)
	}

	reason := "provider_unavailable"
	if errors.Is(fetchErr, domain.ErrRateLimited) {
		reason = "rate_limited"
	}
	age := s.now().Sub(cached.FetchedAt)

	s.log.Warn().
		Err(fetchErr).
		Str("symbol", symbol).
		Str("reason", reason).
		Dur("age", age).
		Msg("Serving stale quote")
	s.events.Emit(events.QuoteDegraded, "quotes", "", &events.QuoteDegradedData{
		Symbol:    symbol,
		Reason:    reason,
		FetchedAt: cached.FetchedAt,
		AgeSecs:   int64(age / time.Second),
	})

	stale := *cached
	stale.Stale = true
	return &stale, nil
}
