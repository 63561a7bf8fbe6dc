package quotes

import (
	"context"
	"errors"
	"time"

	"github.com/finsight/papertrade/internal/domain"
	"github.com/finsight/papertrade/internal/utils"
)

// BatchResult is the outcome of a bounded multi-symbol lookup
type BatchResult struct {
	Prices  map[string]*domain.Quote `json:"prices"`
	Missing []string                 `json:"missing"`
	// Partial is set when some symbols are missing or served stale
	Partial bool `json:"partial"`
}

// GetPrices resolves many symbols within the provider budget. Fresh cache
// hits cost nothing. Misses are fetched one at a time, spaced by BatchDelay,
// up to BatchMaxFetches calls and within BatchBudget. Once the budget is
// spent or the provider signals rate limiting, the remaining misses fall
// back to stale entries or are reported missing.
func (s *Service) GetPrices(ctx context.Context, symbols []string) *BatchResult {
	defer utils.OperationTimer("quote_batch", s.cfg.BatchBudget, s.log)()

	result := &BatchResult{
		Prices:  make(map[string]*domain.Quote),
		Missing: []string{},
	}

	deadline := s.now().Add(s.cfg.BatchBudget)
	ctx, cancel := context.WithTimeout(ctx, s.cfg.BatchBudget)
	defer cancel()

	type miss struct {
		symbol string
		cached *domain.Quote
	}
	var misses []miss

	seen := make(map[string]bool, len(symbols))
	for _, raw := range symbols {
		symbol := domain.NormalizeSymbol(raw)
		if seen[symbol] {
			continue
		}
		seen[symbol] = true

		if err := domain.ValidateSymbol(symbol); err != nil {
			result.Missing = append(result.Missing, symbol)
			continue
		}

		cached := s.lookup(ctx, symbol)
		if cached != nil && s.isFresh(cached) {
			result.Prices[symbol] = cached
			continue
		}
		misses = append(misses, miss{symbol: symbol, cached: cached})
	}

	fetches := 0
	stopped := ""
	for _, m := range misses {
		if stopped == "" {
			stopped = s.batchStopReason(ctx, fetches, deadline)
		}
		if stopped == "" && fetches > 0 {
			if err := s.sleep(ctx, s.cfg.BatchDelay); err != nil {
				stopped = "budget_exhausted"
			}
		}
		if stopped != "" {
			s.batchFallback(result, m.symbol, m.cached)
			continue
		}

		fetches++
		q, err := s.fetch(ctx, m.symbol)
		if err != nil {
			if errors.Is(err, domain.ErrRateLimited) {
				stopped = "rate_limited"
			}
			s.log.Debug().Err(err).Str("symbol", m.symbol).Msg("Batch fetch failed")
			s.batchFallback(result, m.symbol, m.cached)
			continue
		}
		result.Prices[m.symbol] = q
	}

	if result.Partial || len(result.Missing) > 0 {
		result.Partial = true
		s.log.Warn().
			Int("requested", len(seen)).
			Int("priced", len(result.Prices)).
			Int("missing", len(result.Missing)).
			Int("fetches", fetches).
			Str("stop_reason", stopped).
			Msg("Batch price fetch returned partial results")
	}

	return result
}

func (s *Service) batchStopReason(ctx context.Context, fetches int, deadline time.Time) string {
	switch {
	case fetches >= s.cfg.BatchMaxFetches:
		return "max_fetches"
	case ctx.Err() != nil:
		return "budget_exhausted"
	case fetches > 0 && s.now().Add(s.cfg.BatchDelay).After(deadline):
		return "budget_exhausted"
	}
	return ""
}

func (s *Service) batchFallback(result *BatchResult, symbol string, cached *domain.Quote) {
	result.Partial = true
	if cached == nil {
		result.Missing = append(result.Missing, symbol)
		return
	}
	stale := *cached
	stale.Stale = true
	result.Prices[symbol] = &stale
}
