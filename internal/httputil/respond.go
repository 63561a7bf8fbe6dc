// Package httputil holds the JSON response helpers shared by module handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/finsight/papertrade/internal/domain"
	"github.com/rs/zerolog"
)

// RetryAfterSeconds is advertised when no quote could be obtained
const RetryAfterSeconds = 60

// ErrorResponse is the error body. Details carries the numbers behind an
// insufficient balance or shares rejection.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes data as a JSON response
func WriteJSON(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteError writes an error response
func WriteError(w http.ResponseWriter, log zerolog.Logger, status int, message string) {
	WriteJSON(w, log, status, ErrorResponse{Error: message})
}

// WriteDomainError maps the shared error taxonomy to a status code and body.
// Unknown errors are logged and reported as 500 without internals.
func WriteDomainError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var balanceErr *domain.InsufficientBalanceError
	var sharesErr *domain.InsufficientSharesError

	switch {
	case errors.As(err, &balanceErr):
		WriteJSON(w, log, http.StatusBadRequest, ErrorResponse{
			Error: balanceErr.Error(),
			Code:  "insufficient_balance",
			Details: map[string]interface{}{
				"required":  balanceErr.Required.StringFixed(2),
				"available": balanceErr.Available.StringFixed(2),
				"shortfall": balanceErr.Shortfall().StringFixed(2),
			},
		})
	case errors.As(err, &sharesErr):
		WriteJSON(w, log, http.StatusBadRequest, ErrorResponse{
			Error: sharesErr.Error(),
			Code:  "insufficient_shares",
			Details: map[string]interface{}{
				"symbol":    sharesErr.Symbol,
				"requested": sharesErr.Requested,
				"held":      sharesErr.Held,
			},
		})
	case errors.Is(err, domain.ErrInvalidInput):
		WriteJSON(w, log, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "invalid_input"})
	case errors.Is(err, domain.ErrNoSuchPosition):
		WriteJSON(w, log, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "no_such_position"})
	case errors.Is(err, domain.ErrUnauthorized):
		WriteJSON(w, log, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: "unauthorized"})
	case errors.Is(err, domain.ErrQuoteUnavailable):
		w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
		WriteJSON(w, log, http.StatusServiceUnavailable, ErrorResponse{
			Error: "quote unavailable, please retry shortly",
			Code:  "quote_unavailable",
		})
	default:
		log.Error().Err(err).Msg("Request failed")
		WriteJSON(w, log, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// DecodeJSON decodes a request body, rejecting unknown fields
func DecodeJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return domain.InvalidInput("invalid request body: %v", err)
	}
	return nil
}
