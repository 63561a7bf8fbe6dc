package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/finsight/papertrade/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDomainError_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid input", domain.InvalidInput("quantity must be positive"), http.StatusBadRequest, "invalid_input"},
		{"no such position", domain.NoSuchPosition("AAPL"), http.StatusNotFound, "no_such_position"},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"quote unavailable", fmt.Errorf("%w for X", domain.ErrQuoteUnavailable), http.StatusServiceUnavailable, "quote_unavailable"},
		{"shares", &domain.InsufficientSharesError{Symbol: "AAPL", Requested: 5, Held: 2}, http.StatusBadRequest, "insufficient_shares"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteDomainError(rec, zerolog.Nop(), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.NotContains(t, body.Error, "disk on fire")
		})
	}
}

func TestWriteDomainError_BalanceDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteDomainError(rec, zerolog.Nop(), fmt.Errorf("buy: %w", &domain.InsufficientBalanceError{
		Required:  decimal.NewFromInt(1500),
		Available: decimal.NewFromInt(1000),
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "insufficient balance: required $1,500.00, available $1,000.00", body.Error)
	assert.Equal(t, "1500.00", body.Details["required"])
	assert.Equal(t, "500.00", body.Details["shortfall"])
}

func TestWriteDomainError_RetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteDomainError(rec, zerolog.Nop(), domain.ErrQuoteUnavailable)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestDecodeJSON(t *testing.T) {
	var dest struct {
		Symbol string `json:"symbol"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"symbol":"AAPL"}`))
	require.NoError(t, DecodeJSON(req, &dest))
	assert.Equal(t, "AAPL", dest.Symbol)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"symbol":"AAPL","price":1}`))
	assert.ErrorIs(t, DecodeJSON(req, &dest), domain.ErrInvalidInput)
}
