package quotes

import (
	"context"
	"strings"

	"github.com/finsight/papertrade/internal/clientdata"
	"github.com/finsight/papertrade/internal/clients/alphavantage"
	"github.com/finsight/papertrade/internal/domain"
	"github.com/rs/zerolog"
)

const maxSearchQueryLength = 64

// SymbolSearcher looks up tickers by keyword
type SymbolSearcher interface {
	SearchSymbols(ctx context.Context, keywords string) ([]alphavantage.SymbolMatch, error)
}

// SearchService caches symbol lookups for a week; on provider failure a
// stale result is served when one exists.
type SearchService struct {
	searcher SymbolSearcher
	cache    *clientdata.Repository
	log      zerolog.Logger
}

// NewSearchService creates a search service. cache may be nil.
func NewSearchService(searcher SymbolSearcher, cache *clientdata.Repository, log zerolog.Logger) *SearchService {
	return &SearchService{
		searcher: searcher,
		cache:    cache,
		log:      log.With().Str("service", "symbol_search").Logger(),
	}
}

// Search returns matches for query
func (s *SearchService) Search(ctx context.Context, query string) ([]alphavantage.SymbolMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.InvalidInput("search query is required")
	}
	if len(query) > maxSearchQueryLength {
		return nil, domain.InvalidInput("search query is longer than %d characters", maxSearchQueryLength)
	}
	key := strings.ToLower(query)

	if s.cache != nil {
		var cached []alphavantage.SymbolMatch
		if entry, err := s.cache.GetIfFresh(clientdata.TableSymbolSearch, key, &cached); err == nil && entry != nil {
			return cached, nil
		}
	}

	matches, err := s.searcher.SearchSymbols(ctx, query)
	if err != nil {
		if s.cache != nil {
			var stale []alphavantage.SymbolMatch
			if entry, cerr := s.cache.Get(clientdata.TableSymbolSearch, key, &stale); cerr == nil && entry != nil {
				s.log.Warn().Err(err).Str("query", query).Msg("Search failed, using stale cached matches")
				return stale, nil
			}
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Store(clientdata.TableSymbolSearch, key, matches, clientdata.TTLSymbolSearch); err != nil {
			s.log.Warn().Err(err).Str("query", query).Msg("Failed to cache search results")
		}
	}
	return matches, nil
}
