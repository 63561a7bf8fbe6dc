package domain

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is the only currency the simulation trades in
const Currency = "USD"

// StartingCash is the balance every new account receives
var StartingCash = decimal.NewFromInt(10000)

// FormatUSD renders an amount for messages, e.g. "$1,500.00".
// Rounding to cents happens here only; stored values keep full precision.
func FormatUSD(d decimal.Decimal) string {
	cents := d.Shift(2).Round(0).IntPart()
	return money.New(cents, Currency).Display()
}

// DecimalFromDB converts a REAL column value to a decimal
func DecimalFromDB(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// DecimalToDB converts a decimal to a REAL column value
func DecimalToDB(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
