package alphavantage

import (
	"time"

	"github.com/shopspring/decimal"
)

// GlobalQuote is the GLOBAL_QUOTE payload
type GlobalQuote struct {
	Symbol           string
	Open             decimal.Decimal
	High             decimal.Decimal
	Low              decimal.Decimal
	Price            decimal.Decimal
	Volume           int64
	LatestTradingDay time.Time
	PreviousClose    decimal.Decimal
	Change           decimal.Decimal
	ChangePercent    decimal.Decimal
}

// SymbolMatch is one SYMBOL_SEARCH result
type SymbolMatch struct {
	Symbol      string  `json:"symbol" msgpack:"symbol"`
	Name        string  `json:"name" msgpack:"name"`
	Type        string  `json:"type" msgpack:"type"`
	Region      string  `json:"region" msgpack:"region"`
	MarketOpen  string  `json:"market_open" msgpack:"market_open"`
	MarketClose string  `json:"market_close" msgpack:"market_close"`
	Timezone    string  `json:"timezone" msgpack:"timezone"`
	Currency    string  `json:"currency" msgpack:"currency"`
	MatchScore  float64 `json:"match_score" msgpack:"match_score"`
}
