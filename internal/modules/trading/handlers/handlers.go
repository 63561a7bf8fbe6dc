// Package handlers provides HTTP handlers for trade execution.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/finsight/papertrade/internal/auth"
	"github.com/finsight/papertrade/internal/domain"
	"github.com/finsight/papertrade/internal/httputil"
	"github.com/finsight/papertrade/internal/modules/trading"
)

// TradeExecutor executes and previews orders
type TradeExecutor interface {
	Buy(ctx context.Context, userID, symbol string, quantity int64) (*trading.BuyResult, error)
	Sell(ctx context.Context, userID, symbol string, quantity int64) (*trading.SellResult, error)
	Preview(ctx context.Context, userID string, side domain.TradeSide, symbol string, quantity int64) (*trading.Preview, error)
}

// OrderRequest is the body of buy, sell and preview requests.
// The price is never taken from the client.
type OrderRequest struct {
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
	Side     string `json:"side,omitempty"`
}

// TradingHandlers contains HTTP handlers for the trading API
type TradingHandlers struct {
	trades TradeExecutor
	log    zerolog.Logger
}

// NewTradingHandlers creates a new trading handlers instance
func NewTradingHandlers(trades TradeExecutor, log zerolog.Logger) *TradingHandlers {
	return &TradingHandlers{
		trades: trades,
		log:    log.With().Str("handler", "trading").Logger(),
	}
}

// HandleBuy executes a market buy
// POST /api/trades/buy {"symbol": "AAPL", "quantity": 10}
func (h *TradingHandlers) HandleBuy(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteDomainError(w, h.log, err)
		return
	}

	result, err := h.trades.Buy(r.Context(), auth.UserID(r.Context()), req.Symbol, req.Quantity)
	if err != nil {
		httputil.WriteDomainError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, result)
}

// HandleSell executes a market sell
// POST /api/trades/sell {"symbol": "AAPL", "quantity": 10}
func (h *TradingHandlers) HandleSell(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteDomainError(w, h.log, err)
		return
	}

	result, err := h.trades.Sell(r.Context(), auth.UserID(r.Context()), req.Symbol, req.Quantity)
	if err != nil {
		httputil.WriteDomainError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, result)
}

// HandlePreview prices an order without executing it
// POST /api/trades/preview {"side": "BUY", "symbol": "AAPL", "quantity": 10}
func (h *TradingHandlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteDomainError(w, h.log, err)
		return
	}

	side := domain.TradeSide(strings.ToUpper(strings.TrimSpace(req.Side)))
	preview, err := h.trades.Preview(r.Context(), auth.UserID(r.Context()), side, req.Symbol, req.Quantity)
	if err != nil {
		httputil.WriteDomainError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, preview)
}
