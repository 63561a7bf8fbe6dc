// Package handlers provides HTTP handlers for portfolio history and performance.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/finsight/papertrade/internal/auth"
	"github.com/finsight/papertrade/internal/domain"
	"github.com/finsight/papertrade/internal/httputil"
	"github.com/finsight/papertrade/internal/modules/snapshots"
)

// HistoryService serves value history
type HistoryService interface {
	History(ctx context.Context, userID string, limit int) ([]snapshots.Snapshot, error)
	Performance(ctx context.Context, userID string) (*snapshots.Performance, error)
}

// Handler handles snapshot HTTP requests
type Handler struct {
	service HistoryService
	log     zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(service HistoryService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleGetHistory returns the value history, oldest first
// GET /api/portfolio/history?limit=N
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httputil.WriteDomainError(w, h.log, domain.InvalidInput("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	history, err := h.service.History(r.Context(), auth.UserID(r.Context()), limit)
	if err != nil {
		httputil.WriteDomainError(w, h.log, err)
		return
	}

	httputil.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"snapshots": history,
	})
}

// HandleGetPerformance returns return and risk figures for the history
// GET /api/portfolio/performance
func (h *Handler) HandleGetPerformance(w http.ResponseWriter, r *http.Request) {
	perf, err := h.service.Performance(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		httputil.WriteDomainError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, h.log, http.StatusOK, perf)
}
