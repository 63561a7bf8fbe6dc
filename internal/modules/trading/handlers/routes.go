package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers trade execution routes. Trade history (GET
// /trades) is registered by the ledger module.
func (h *TradingHandlers) RegisterRoutes(r chi.Router) {
	r.Post("/trades/buy", h.HandleBuy)
	r.Post("/trades/sell", h.HandleSell)
	r.Post("/trades/preview", h.HandlePreview)
}
