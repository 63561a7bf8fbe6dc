package alphavantage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// parseDecimal parses a numeric field, tolerating "%" suffixes and the
// placeholder values the API uses for missing data.
func parseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	switch s {
	case "", "None", "null", "-":
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseFloat64(s string) float64 {
	f, _ := parseDecimal(s).Float64()
	return f
}

func parseInt64(s string) int64 {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return parseDecimal(s).IntPart()
}

func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseGlobalQuote returns nil when the API sent an empty quote object,
// which is how unknown symbols are reported.
func parseGlobalQuote(body []byte) (*GlobalQuote, error) {
	var resp struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse global quote: %w", err)
	}
	q := resp.GlobalQuote
	if len(q) == 0 || q["01. symbol"] == "" {
		return nil, nil
	}

	return &GlobalQuote{
		Symbol:           q["01. symbol"],
		Open:             parseDecimal(q["02. open"]),
		High:             parseDecimal(q["03. high"]),
		Low:              parseDecimal(q["04. low"]),
		Price:            parseDecimal(q["05. price"]),
		Volume:           parseInt64(q["06. volume"]),
		LatestTradingDay: parseDate(q["07. latest trading day"]),
		PreviousClose:    parseDecimal(q["08. previous close"]),
		Change:           parseDecimal(q["09. change"]),
		ChangePercent:    parseDecimal(q["10. change percent"]),
	}, nil
}

func parseSymbolSearch(body []byte) ([]SymbolMatch, error) {
	var resp struct {
		BestMatches []map[string]string `json:"bestMatches"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse symbol search: %w", err)
	}

	matches := make([]SymbolMatch, 0, len(resp.BestMatches))
	for _, m := range resp.BestMatches {
		matches = append(matches, SymbolMatch{
			Symbol:      m["1. symbol"],
			Name:        m["2. name"],
			Type:        m["3. type"],
			Region:      m["4. region"],
			MarketOpen:  m["5. marketOpen"],
			MarketClose: m["6. marketClose"],
			Timezone:    m["7. timezone"],
			Currency:    m["8. currency"],
			MatchScore:  parseFloat64(m["9. matchScore"]),
		})
	}
	return matches, nil
}
