package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers history routes under /portfolio
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolio/history", h.HandleGetHistory)
	r.Get("/portfolio/performance", h.HandleGetPerformance)
}
