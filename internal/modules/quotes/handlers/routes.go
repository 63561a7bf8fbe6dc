package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all market data routes
func (h *QuoteHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/quotes", func(r chi.Router) {
		r.Get("/", h.HandleGetQuotes)        // Bounded batch
		r.Get("/{symbol}", h.HandleGetQuote) // Single quote
	})
	r.Get("/search", h.HandleSearch)
	r.Get("/crypto", h.HandleCrypto)
}
