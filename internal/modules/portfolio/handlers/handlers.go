// Package handlers provides HTTP handlers for portfolio queries.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/finsight/papertrade/internal/auth"
	"github.com/finsight/papertrade/internal/httputil"
	"github.com/finsight/papertrade/internal/modules/portfolio"
)

// SummaryService produces portfolio summaries
type SummaryService interface {
	Summary(ctx context.Context, userID string, live bool) (*portfolio.Summary, error)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	service SummaryService
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service SummaryService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetPortfolio returns the account and positions
// GET /api/portfolio?live=true
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	live, _ := strconv.ParseBool(r.URL.Query().Get("live"))

	summary, err := h.service.Summary(r.Context(), auth.UserID(r.Context()), live)
	if err != nil {
		httputil.WriteDomainError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, summary)
}
