package formulas

import (
	"github.com/markcheno/go-talib"
)

// SMASeries returns the simple moving average aligned with values.
// Entries before the first full window are nil. Returns nil when there are
// fewer than length values.
func SMASeries(values []float64, length int) []*float64 {
	if length < 1 || len(values) < length {
		return nil
	}

	sma := talib.Sma(values, length)
	out := make([]*float64, len(values))
	for i := length - 1; i < len(sma) && i < len(values); i++ {
		v := sma[i]
		out[i] = &v
	}
	return out
}
