// Package snapshots records point-in-time portfolio values and serves the
// value history used for charts and performance figures.
package snapshots

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the portfolio value of one user at one instant.
// PortfolioValue is cash plus every position at its average cost.
type Snapshot struct {
	ID             string          `json:"id,omitempty"`
	UserID         string          `json:"-"`
	CashBalance    decimal.Decimal `json:"cash_balance"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	RecordedAt     time.Time       `json:"recorded_at"`
	// Synthetic marks the seed point prepended to short histories
	Synthetic bool `json:"synthetic,omitempty"`
}

// Performance summarizes a value history
type Performance struct {
	Points          int        `json:"points"`
	StartValue      float64    `json:"start_value"`
	EndValue        float64    `json:"end_value"`
	TotalReturn     float64    `json:"total_return"`
	MeanStepReturn  float64    `json:"mean_step_return"`
	StepVolatility  float64    `json:"step_volatility"`
	MaxDrawdown     float64    `json:"max_drawdown"`
	MovingAverage   []*float64 `json:"moving_average,omitempty"`
	MovingAvgPeriod int        `json:"moving_average_period,omitempty"`
}

const (
	// DefaultHistoryLimit is the number of points returned when no limit is given
	DefaultHistoryLimit = 365
	// MaxHistoryLimit caps any requested limit
	MaxHistoryLimit = 5000

	seedOffset          = 24 * time.Hour
	movingAveragePeriod = 5
)
