// Package events provides event management functionality.
package events

import (
	"time"
)

// EventType represents different event types
type EventType string

const (
	AccountCreated   EventType = "ACCOUNT_CREATED"
	TradeExecuted    EventType = "TRADE_EXECUTED"
	SnapshotRecorded EventType = "SNAPSHOT_RECORDED"
	QuoteDegraded    EventType = "QUOTE_DEGRADED"
	WatchlistChanged EventType = "WATCHLIST_CHANGED"
	ErrorOccurred    EventType = "ERROR_OCCURRED"
)

// Event is a published event. UserID is empty for market-wide events.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	UserID    string    `json:"user_id,omitempty"`
	Data      EventData `json:"data,omitempty"`
}
