package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	closed bool
}

func (s *recordingSink) Publish(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func TestEventDataTypes(t *testing.T) {
	assert.Equal(t, TradeExecuted, (&TradeExecutedData{}).EventType())
	assert.Equal(t, SnapshotRecorded, (&SnapshotRecordedData{}).EventType())
	assert.Equal(t, QuoteDegraded, (&QuoteDegradedData{}).EventType())
	assert.Equal(t, AccountCreated, (&AccountCreatedData{}).EventType())
	assert.Equal(t, WatchlistChanged, (&WatchlistChangedData{}).EventType())
	assert.Equal(t, ErrorOccurred, (&ErrorEventData{}).EventType())
}

func TestBus_FilterByUser(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	alice := bus.Subscribe(4, ForUser("alice"))
	defer alice.Close()
	all := bus.Subscribe(4, nil)
	defer all.Close()

	bus.Publish(Event{Type: TradeExecuted, UserID: "bob"})
	bus.Publish(Event{Type: TradeExecuted, UserID: "alice"})

	select {
	case e := <-alice.C():
		assert.Equal(t, "alice", e.UserID)
	case <-time.After(time.Second):
		t.Fatal("alice did not receive her event")
	}
	assert.Len(t, alice.C(), 0)
	assert.Len(t, all.C(), 2)
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	sub := bus.Subscribe(1, nil)
	defer sub.Close()

	bus.Publish(Event{Type: QuoteDegraded})
	bus.Publish(Event{Type: QuoteDegraded})

	assert.Equal(t, int64(1), sub.Dropped())
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	sub := bus.Subscribe(1, nil)
	assert.Equal(t, 1, bus.SubscriberCount())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, bus.SubscriberCount())

	_, open := <-sub.C()
	assert.False(t, open)
}

func TestManager_EmitFansOut(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	sub := bus.Subscribe(2, nil)
	defer sub.Close()

	sink := &recordingSink{}
	mgr := NewManager(bus, zerolog.Nop(), sink)

	mgr.Emit(TradeExecuted, "trading", "alice", &TradeExecutedData{
		Side:   "BUY",
		Symbol: "AAPL",
		Shares: 10,
		Price:  decimal.NewFromInt(150),
	})

	e := <-sub.C()
	assert.Equal(t, TradeExecuted, e.Type)
	assert.Equal(t, "trading", e.Module)
	data, ok := e.Data.(*TradeExecutedData)
	require.True(t, ok)
	assert.Equal(t, "AAPL", data.Symbol)

	require.Len(t, sink.events, 1)
	assert.Equal(t, "alice", sink.events[0].UserID)

	require.NoError(t, mgr.Close())
	assert.True(t, sink.closed)
}

func TestManager_SinkFailureIsSwallowed(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	mgr := NewManager(NewBus(zerolog.Nop()), zerolog.Nop(), sink)

	assert.NotPanics(t, func() {
		mgr.EmitError("quotes", "", errors.New("boom"), map[string]interface{}{"symbol": "X"})
	})
	assert.Len(t, sink.events, 1)
}

func TestNewKafkaWriter(t *testing.T) {
	w := newKafkaWriter([]string{"broker-1:9092", "broker-2:9092"}, "papertrade.events", "papertrade", zerolog.Nop())
	defer w.Close()

	require.NotNil(t, w.Addr)
	assert.Equal(t, "tcp", w.Addr.Network())
	assert.Equal(t, "papertrade.events", w.Topic)
	assert.True(t, w.Async)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
	assert.NotNil(t, w.Completion)

	transport, ok := w.Transport.(*kafka.Transport)
	require.True(t, ok)
	assert.Equal(t, "papertrade", transport.ClientID)
}

func TestEncodeKafkaMessage(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	msg, err := encodeKafkaMessage(Event{
		Type:      SnapshotRecorded,
		Timestamp: ts,
		Module:    "snapshots",
		UserID:    "alice",
		Data:      &SnapshotRecordedData{SnapshotID: "s1", PortfolioValue: decimal.NewFromInt(10000)},
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", string(msg.Key))
	assert.Equal(t, ts, msg.Time)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "SNAPSHOT_RECORDED", decoded["type"])
	assert.Equal(t, "10000", decoded["data"].(map[string]interface{})["portfolio_value"])

	market, err := encodeKafkaMessage(Event{Type: QuoteDegraded})
	require.NoError(t, err)
	assert.Equal(t, "QUOTE_DEGRADED", string(market.Key))
}
