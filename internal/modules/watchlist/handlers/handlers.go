// Package handlers provides HTTP handlers for the watchlist.
package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/finsight/papertrade/internal/auth"
	"github.com/finsight/papertrade/internal/domain"
	"github.com/finsight/papertrade/internal/events"
	"github.com/finsight/papertrade/internal/httputil"
	"github.com/finsight/papertrade/internal/modules/quotes"
	"github.com/finsight/papertrade/internal/modules/watchlist"
)

// Store persists watchlists
type Store interface {
	Add(ctx context.Context, userID, symbol string) (bool, error)
	Remove(ctx context.Context, userID, symbol string) (bool, error)
	List(ctx context.Context, userID string) ([]watchlist.Item, error)
}

// BatchPricer prices many symbols within the provider budget
type BatchPricer interface {
	GetPrices(ctx context.Context, symbols []string) *quotes.BatchResult
}

// Handler handles watchlist HTTP requests
type Handler struct {
	store  Store
	prices BatchPricer
	events events.Emitter
	log    zerolog.Logger
}

// NewHandler creates a new watchlist handler
func NewHandler(store Store, prices BatchPricer, emitter events.Emitter, log zerolog.Logger) *Handler {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Handler{
		store:  store,
		prices: prices,
		events: emitter,
		log:    log.With().Str("handler", "watchlist").Logger(),
	}
}

type addRequest struct {
	Symbol string `json:"symbol"`
}

// HandleList returns the followed symbols with a bounded batch of quotes
// GET /api/watchlist
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		httputil.WriteDomainError(w, h.log, err)
		return
	}

	batch := &quotes.BatchResult{Prices: map[string]*domain.Quote{}, Missing: []string{}}
	if len(items) > 0 {
		symbols := make([]string, len(items))
		for i, item := range items {
			symbols[i] = item.Symbol
		}
		batch = h.prices.GetPrices(r.Context(), symbols)
	}

	httputil.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"items":   items,
		"quotes":  batch.Prices,
		"missing": batch.Missing,
		"partial": batch.Partial,
	})
}

// HandleAdd follows a symbol
// POST /api/watchlist {"symbol": "AAPL"}
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteDomainError(w, h.log, err)
		return
	}

	userID := auth.UserID(r.Context())
	added, err := h.store.Add(r.Context(), userID, req.Symbol)
	if err != nil {
		httputil.WriteDomainError(w, h.log, err)
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
		h.events.Emit(events.WatchlistChanged, "watchlist", userID, &events.WatchlistChangedData{
			Symbol: domain.NormalizeSymbol(req.Symbol),
			Action: "added",
		})
	}
	httputil.WriteJSON(w, h.log, status, map[string]interface{}{"added": added})
}

// HandleRemove stops following a symbol
// DELETE /api/watchlist/{symbol}
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	symbol := domain.NormalizeSymbol(chi.URLParam(r, "symbol"))

	removed, err := h.store.Remove(r.Context(), userID, symbol)
	if err != nil {
		httputil.WriteDomainError(w, h.log, err)
		return
	}
	if !removed {
		httputil.WriteError(w, h.log, http.StatusNotFound, "symbol not in watchlist")
		return
	}

	h.events.Emit(events.WatchlistChanged, "watchlist", userID, &events.WatchlistChangedData{
		Symbol: symbol,
		Action: "removed",
	})
	w.WriteHeader(http.StatusNoContent)
}
