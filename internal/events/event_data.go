package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// AccountCreatedData contains data for AccountCreated events
type AccountCreatedData struct {
	StartingCash decimal.Decimal `json:"starting_cash"`
}

// EventType returns the event type for AccountCreatedData
func (d *AccountCreatedData) EventType() EventType {
	return AccountCreated
}

// TradeExecutedData contains data for TradeExecuted events
type TradeExecutedData struct {
	TransactionID string           `json:"transaction_id"`
	Side          string           `json:"side"`
	Symbol        string           `json:"symbol"`
	Shares        int64            `json:"shares"`
	Price         decimal.Decimal  `json:"price"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	RealizedPnL   *decimal.Decimal `json:"realized_pnl,omitempty"`
	NewBalance    decimal.Decimal  `json:"new_balance"`
	StalePrice    bool             `json:"stale_price"`
}

// EventType returns the event type for TradeExecutedData
func (d *TradeExecutedData) EventType() EventType {
	return TradeExecuted
}

// SnapshotRecordedData contains data for SnapshotRecorded events
type SnapshotRecordedData struct {
	SnapshotID     string          `json:"snapshot_id"`
	CashBalance    decimal.Decimal `json:"cash_balance"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
}

// EventType returns the event type for SnapshotRecordedData
func (d *SnapshotRecordedData) EventType() EventType {
	return SnapshotRecorded
}

// QuoteDegradedData is emitted when a stale quote is served
type QuoteDegradedData struct {
	Symbol    string    `json:"symbol"`
	Reason    string    `json:"reason"`
	FetchedAt time.Time `json:"fetched_at"`
	AgeSecs   int64     `json:"age_seconds"`
}

// EventType returns the event type for QuoteDegradedData
func (d *QuoteDegradedData) EventType() EventType {
	return QuoteDegraded
}

// WatchlistChangedData contains data for WatchlistChanged events
type WatchlistChangedData struct {
	Symbol string `json:"symbol"`
	Action string `json:"action"` // added, removed
}

// EventType returns the event type for WatchlistChangedData
func (d *WatchlistChangedData) EventType() EventType {
	return WatchlistChanged
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
