package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers transaction history routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/trades", h.HandleGetTrades)
}
