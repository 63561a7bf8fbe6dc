package server

import (
	"net/http"

	"github.com/finsight/papertrade/internal/httputil"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	state := "healthy"
	for _, db := range s.container.Databases() {
		if err := db.QuickCheck(r.Context()); err != nil {
			s.log.Error().Err(err).Str("database", db.Name()).Msg("Health check failed")
			status = http.StatusServiceUnavailable
			state = "unhealthy"
			break
		}
	}

	httputil.WriteJSON(w, s.log, status, map[string]interface{}{
		"status":  state,
		"service": "papertrade",
	})
}
