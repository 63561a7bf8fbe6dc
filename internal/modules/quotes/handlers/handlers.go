// Package handlers provides HTTP handlers for quotes, symbol search and crypto prices.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/finsight/papertrade/internal/clients/alphavantage"
	"github.com/finsight/papertrade/internal/clients/coingecko"
	"github.com/finsight/papertrade/internal/domain"
	"github.com/finsight/papertrade/internal/httputil"
	"github.com/finsight/papertrade/internal/modules/quotes"
	"github.com/finsight/papertrade/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const maxBatchSymbols = 50

// QuoteService is the quote cache as used by the handlers
type QuoteService interface {
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
	GetPrices(ctx context.Context, symbols []string) *quotes.BatchResult
}

// Searcher runs symbol searches
type Searcher interface {
	Search(ctx context.Context, query string) ([]alphavantage.SymbolMatch, error)
}

// CryptoPricer returns crypto spot prices
type CryptoPricer interface {
	SimplePrice(ctx context.Context, ids []string) (*coingecko.Prices, error)
}

// QuoteHandlers contains HTTP handlers for market data
type QuoteHandlers struct {
	quotes QuoteService
	search Searcher
	crypto CryptoPricer
	log    zerolog.Logger
}

// NewQuoteHandlers creates a new quote handlers instance
func NewQuoteHandlers(quoteService QuoteService, search Searcher, crypto CryptoPricer, log zerolog.Logger) *QuoteHandlers {
	return &QuoteHandlers{
		quotes: quoteService,
		search: search,
		crypto: crypto,
		log:    log.With().Str("handler", "quotes").Logger(),
	}
}

// HandleGetQuote returns one quote
// GET /api/quotes/{symbol}
func (h *QuoteHandlers) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.quotes.GetQuote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		httputil.WriteDomainError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, quote)
}

// HandleGetQuotes returns a bounded batch of quotes
// GET /api/quotes?symbols=AAPL,MSFT
func (h *QuoteHandlers) HandleGetQuotes(w http.ResponseWriter, r *http.Request) {
	symbols := utils.ParseCSV(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		httputil.WriteError(w, h.log, http.StatusBadRequest, "symbols query parameter is required")
		return
	}
	if len(symbols) > maxBatchSymbols {
		httputil.WriteError(w, h.log, http.StatusBadRequest, "too many symbols")
		return
	}

	httputil.WriteJSON(w, h.log, http.StatusOK, h.quotes.GetPrices(r.Context(), symbols))
}

// HandleSearch runs a symbol search
// GET /api/search?q=apple
func (h *QuoteHandlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	matches, err := h.search.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		if isDomainError(err) {
			httputil.WriteDomainError(w, h.log, err)
			return
		}
		h.log.Error().Err(err).Msg("Symbol search failed")
		httputil.WriteError(w, h.log, http.StatusBadGateway, "symbol search unavailable")
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"matches": matches,
	})
}

// HandleCrypto returns crypto prices
// GET /api/crypto?ids=bitcoin,ethereum
func (h *QuoteHandlers) HandleCrypto(w http.ResponseWriter, r *http.Request) {
	ids := utils.ParseCSV(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		ids = []string{"bitcoin", "ethereum"}
	}

	prices, err := h.crypto.SimplePrice(r.Context(), ids)
	if err != nil {
		h.log.Error().Err(err).Strs("ids", ids).Msg("Crypto prices unavailable")
		httputil.WriteError(w, h.log, http.StatusBadGateway, "crypto prices unavailable")
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, prices)
}

func isDomainError(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrQuoteUnavailable)
}
