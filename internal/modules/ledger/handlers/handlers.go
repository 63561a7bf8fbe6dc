// Package handlers provides HTTP handlers for transaction history.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/finsight/papertrade/internal/auth"
	"github.com/finsight/papertrade/internal/domain"
	"github.com/finsight/papertrade/internal/httputil"
	"github.com/finsight/papertrade/internal/modules/ledger"
)

// HistoryReader reads transaction history
type HistoryReader interface {
	History(ctx context.Context, userID string, filter ledger.HistoryFilter) ([]ledger.Transaction, error)
}

// Handler handles ledger HTTP requests
type Handler struct {
	history HistoryReader
	log     zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(history HistoryReader, log zerolog.Logger) *Handler {
	return &Handler{
		history: history,
		log:     log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleGetTrades returns the user's trades, most recent first
// GET /api/trades?limit=50&symbol=AAPL&side=BUY
func (h *Handler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.HistoryFilter{}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httputil.WriteDomainError(w, h.log, domain.InvalidInput("limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}

	if raw := q.Get("symbol"); raw != "" {
		symbol := domain.NormalizeSymbol(raw)
		if err := domain.ValidateSymbol(symbol); err != nil {
			httputil.WriteDomainError(w, h.log, err)
			return
		}
		filter.Symbol = symbol
	}

	if raw := q.Get("side"); raw != "" {
		side := domain.TradeSide(strings.ToUpper(raw))
		if !side.IsValid() {
			httputil.WriteDomainError(w, h.log, domain.InvalidInput("side must be BUY or SELL"))
			return
		}
		filter.Side = side
	}

	transactions, err := h.history.History(r.Context(), auth.UserID(r.Context()), filter)
	if err != nil {
		httputil.WriteDomainError(w, h.log, err)
		return
	}

	httputil.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}
