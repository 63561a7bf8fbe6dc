package clientdata

import "time"

// TTL constants for cached provider responses.
const (
	TTLQuote        = 5 * time.Minute    // Equity quotes
	TTLCryptoPrice  = time.Minute        // CoinGecko simple prices
	TTLSymbolSearch = 7 * 24 * time.Hour // Symbol lookups rarely change

	// DefaultStaleRetention keeps expired rows around for stale fallback
	DefaultStaleRetention = 24 * time.Hour
)
