package quotes

import (
	"context"
	"testing"
	"time"

	"github.com/finsight/papertrade/internal/clientdata"
	"github.com/finsight/papertrade/internal/database"
	"github.com/finsight/papertrade/internal/domain"
	testutil "github.com/finsight/papertrade/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPersistentStore(t *testing.T, now func() time.Time) *PersistentStore {
	db, cleanup := testutil.NewTestDB(t, database.NameClientData)
	t.Cleanup(cleanup)
	repo := clientdata.NewRepository(db.Conn()).WithClock(now)
	return NewPersistentStore(repo, clientdata.TTLQuote)
}

func TestPersistentStore_RoundTripKeepsExpiredRows(t *testing.T) {
	clock := testutil.NewClock(time.Unix(1_700_000_000, 0))
	store := newPersistentStore(t, clock.Now)
	ctx := context.Background()

	q := &domain.Quote{
		Symbol:        "AAPL",
		Price:         decimal.RequireFromString("187.42"),
		DayHigh:       decimal.RequireFromString("188"),
		DayLow:        decimal.RequireFromString("186.1"),
		ChangePercent: decimal.RequireFromString("-0.35"),
		FetchedAt:     clock.Now(),
	}
	require.NoError(t, store.Put(ctx, q))

	clock.Advance(time.Hour)

	got, err := store.Get(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Price.Equal(q.Price))
	assert.True(t, got.ChangePercent.Equal(q.ChangePercent))
	assert.Equal(t, q.FetchedAt.Unix(), got.FetchedAt.Unix())

	missing, err := store.Get(ctx, "MSFT")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTieredStore_BackfillsMemory(t *testing.T) {
	clock := testutil.NewClock(time.Unix(1_700_000_000, 0))
	persistent := newPersistentStore(t, clock.Now)
	memory := newMapStore()
	tiered := NewTieredStore(memory, persistent, zerolog.Nop())
	ctx := context.Background()

	q := &domain.Quote{Symbol: "IBM", Price: decimal.NewFromInt(186), FetchedAt: clock.Now()}
	require.NoError(t, persistent.Put(ctx, q))

	got, err := tiered.Get(ctx, "IBM")
	require.NoError(t, err)
	require.NotNil(t, got)

	inMemory, _ := memory.Get(ctx, "IBM")
	require.NotNil(t, inMemory)
	assert.True(t, inMemory.Price.Equal(q.Price))
}

func TestTieredStore_PutWritesBothTiers(t *testing.T) {
	clock := testutil.NewClock(time.Unix(1_700_000_000, 0))
	persistent := newPersistentStore(t, clock.Now)
	memory := newMapStore()
	tiered := NewTieredStore(memory, persistent, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, tiered.Put(ctx, &domain.Quote{Symbol: "TSLA", Price: decimal.NewFromInt(200), FetchedAt: clock.Now()}))

	fromMemory, _ := memory.Get(ctx, "TSLA")
	fromDisk, _ := persistent.Get(ctx, "TSLA")
	assert.NotNil(t, fromMemory)
	assert.NotNil(t, fromDisk)
}

func TestMemoryStore_SetGet(t *testing.T) {
	store, err := NewMemoryStore(100)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &domain.Quote{Symbol: "AAPL", Price: decimal.NewFromInt(150)}))

	got, err := store.Get(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "150", got.Price.String())

	none, err := store.Get(ctx, "MSFT")
	require.NoError(t, err)
	assert.Nil(t, none)
}
