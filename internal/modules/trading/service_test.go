package trading

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/papertrade/internal/database"
	"github.com/finsight/papertrade/internal/domain"
	"github.com/finsight/papertrade/internal/events"
	"github.com/finsight/papertrade/internal/modules/accounts"
	"github.com/finsight/papertrade/internal/modules/ledger"
	"github.com/finsight/papertrade/internal/modules/portfolio"
	"github.com/finsight/papertrade/internal/modules/snapshots"
	testutil "github.com/finsight/papertrade/internal/testing"
)

type fakePrices struct {
	mu     sync.Mutex
	quotes map[string]*domain.Quote
	err    error
	calls  int
}

func newFakePrices() *fakePrices {
	return &fakePrices{quotes: make(map[string]*domain.Quote)}
}

func (f *fakePrices) set(symbol, price string, stale bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[symbol] = &domain.Quote{Symbol: symbol, Price: decimal.RequireFromString(price), Stale: stale}
}

func (f *fakePrices) GetQuote(_ context.Context, symbol string) (*domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("%w for %s", domain.ErrQuoteUnavailable, symbol)
	}
	copied := *q
	return &copied, nil
}

type tradeEvents struct {
	mu     sync.Mutex
	trades []*events.TradeExecutedData
}

func (e *tradeEvents) Emit(t events.EventType, _, _ string, data events.EventData) {
	if t != events.TradeExecuted {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trades = append(e.trades, data.(*events.TradeExecutedData))
}

type fixture struct {
	service      *Service
	prices       *fakePrices
	events       *tradeEvents
	accounts     *accounts.Service
	positions    *portfolio.PositionRepository
	transactions *ledger.Repository
	snapshots    *snapshots.Repository
	ledgerDB     *database.DB
}

type fixtureOption func(t *testing.T, f *fixture, snapshotRepo **snapshots.Repository)

// withBrokenSnapshotStore records post-trade snapshots into a closed database
func withBrokenSnapshotStore(t *testing.T, _ *fixture, snapshotRepo **snapshots.Repository) {
	db, cleanup := testutil.NewTestDB(t, database.NamePortfolio)
	cleanup()
	*snapshotRepo = snapshots.NewRepository(db.Conn(), zerolog.Nop())
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	portfolioDB, cleanupPortfolio := testutil.NewTestDB(t, database.NamePortfolio)
	t.Cleanup(cleanupPortfolio)
	ledgerDB, cleanupLedger := testutil.NewTestDB(t, database.NameLedger)
	t.Cleanup(cleanupLedger)

	log := zerolog.Nop()
	f := &fixture{
		prices: newFakePrices(),
		events: &tradeEvents{},
	}

	snapshotRepo := snapshots.NewRepository(portfolioDB.Conn(), log)
	recorderRepo := snapshotRepo
	for _, opt := range opts {
		opt(t, f, &recorderRepo)
	}

	accountRepo := accounts.NewRepository(portfolioDB.Conn(), log)
	f.accounts = accounts.NewService(portfolioDB.Conn(), accountRepo, snapshotRepo, nil, log)
	f.positions = portfolio.NewPositionRepository(portfolioDB.Conn(), log)
	f.transactions = ledger.NewRepository(ledgerDB.Conn(), log)
	f.snapshots = snapshotRepo
	f.ledgerDB = ledgerDB

	f.service = NewService(
		f.accounts,
		f.positions,
		portfolio.NewLedger(portfolioDB.Conn(), accountRepo, f.positions, log),
		f.prices,
		ledger.NewLog(f.transactions, log),
		snapshots.NewRecorder(f.accounts, f.positions, recorderRepo, nil, log),
		f.events,
		log,
	)
	return f
}

func (f *fixture) cash(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	acct, err := f.accounts.Get(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, acct)
	return acct.CashBalance
}

func (f *fixture) transactionCount(t *testing.T, userID string) int {
	t.Helper()
	n, err := f.transactions.Count(context.Background(), userID)
	require.NoError(t, err)
	return n
}

func (f *fixture) snapshotCount(t *testing.T, userID string) int {
	t.Helper()
	n, err := f.snapshots.Count(context.Background(), userID)
	require.NoError(t, err)
	return n
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBuyBuySell_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.prices.set("AAPL", "150", false)
	buy1, err := f.service.Buy(ctx, "u1", "AAPL", 10)
	require.NoError(t, err)
	assert.True(t, buy1.NewBalance.Equal(dec("8500")))
	assert.True(t, buy1.TotalCost.Equal(dec("1500")))
	assert.Equal(t, int64(10), buy1.Position.Shares)
	assert.True(t, buy1.Position.AvgPrice.Equal(dec("150")))

	f.prices.set("AAPL", "160", false)
	buy2, err := f.service.Buy(ctx, "u1", "aapl", 5)
	require.NoError(t, err)
	assert.True(t, buy2.NewBalance.Equal(dec("7700")))
	assert.Equal(t, int64(15), buy2.Position.Shares)
	assert.True(t, buy2.Position.TotalCost.Equal(dec("2300")))
	assert.Equal(t, "153.33", buy2.Position.AvgPrice.StringFixed(2))

	f.prices.set("AAPL", "170", false)
	sell, err := f.service.Sell(ctx, "u1", "AAPL", 15)
	require.NoError(t, err)
	assert.True(t, sell.Proceeds.Equal(dec("2550")))
	assert.True(t, sell.ProfitLoss.Equal(dec("250")), "got %s", sell.ProfitLoss)
	assert.True(t, sell.NewBalance.Equal(dec("10250")))
	assert.Equal(t, int64(0), sell.RemainingShares)

	pos, err := f.positions.Get(ctx, "u1", "AAPL")
	require.NoError(t, err)
	assert.Nil(t, pos)

	assert.Equal(t, 3, f.transactionCount(t, "u1"))
	assert.Equal(t, 4, f.snapshotCount(t, "u1"))

	require.Len(t, f.events.trades, 3)
	require.NotNil(t, f.events.trades[2].RealizedPnL)
	assert.True(t, f.events.trades[2].RealizedPnL.Equal(dec("250")))
	assert.NotEmpty(t, f.events.trades[0].TransactionID)
}

func TestBuy_FirstTradeCreatesAccount(t *testing.T) {
	f := newFixture(t)
	f.prices.set("MSFT", "100", false)

	_, err := f.service.Buy(context.Background(), "newbie", "MSFT", 1)
	require.NoError(t, err)

	assert.True(t, f.cash(t, "newbie").Equal(dec("9900")))
	assert.Equal(t, 2, f.snapshotCount(t, "newbie"))
}

func TestBuy_InsufficientBalanceLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.prices.set("AAPL", "150", false)

	_, err := f.service.Buy(ctx, "u1", "AAPL", 100)

	var balanceErr *domain.InsufficientBalanceError
	require.ErrorAs(t, err, &balanceErr)
	assert.Equal(t, "insufficient balance: required $15,000.00, available $10,000.00", err.Error())

	assert.True(t, f.cash(t, "u1").Equal(dec("10000")))
	positions, err := f.positions.GetAll(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.Equal(t, 0, f.transactionCount(t, "u1"))
	assert.Empty(t, f.events.trades)
}

func TestBuy_InvalidInputHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.prices.set("AAPL", "150", false)

	cases := []struct {
		symbol   string
		quantity int64
	}{
		{"", 1},
		{"   ", 1},
		{"AAPL", 0},
		{"AAPL", -5},
		{"NOT A SYMBOL", 1},
	}
	for _, tc := range cases {
		_, err := f.service.Buy(ctx, "u1", tc.symbol, tc.quantity)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "symbol=%q quantity=%d", tc.symbol, tc.quantity)
	}

	acct, err := f.accounts.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, acct)
	assert.Equal(t, 0, f.prices.calls)
}

func TestBuy_MissingUserIsUnauthorized(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Buy(context.Background(), "", "AAPL", 1)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestBuy_QuoteUnavailableCommitsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Buy(ctx, "u1", "AAPL", 1)
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)

	assert.True(t, f.cash(t, "u1").Equal(dec("10000")))
	assert.Equal(t, 0, f.transactionCount(t, "u1"))
}

func TestBuy_StalePriceIsFlagged(t *testing.T) {
	f := newFixture(t)
	f.prices.set("AAPL", "150", true)

	res, err := f.service.Buy(context.Background(), "u1", "AAPL", 1)
	require.NoError(t, err)
	assert.True(t, res.StalePrice)
	assert.True(t, f.events.trades[0].StalePrice)
}

func TestBuy_TransactionLogFailureDoesNotFailTrade(t *testing.T) {
	f := newFixture(t)
	f.prices.set("AAPL", "150", false)
	require.NoError(t, f.ledgerDB.Close())

	res, err := f.service.Buy(context.Background(), "u1", "AAPL", 10)
	require.NoError(t, err)

	assert.Empty(t, res.TransactionID)
	assert.True(t, f.cash(t, "u1").Equal(dec("8500")))
}

func TestBuy_SnapshotFailureDoesNotFailTrade(t *testing.T) {
	f := newFixture(t, withBrokenSnapshotStore)
	f.prices.set("AAPL", "150", false)

	res, err := f.service.Buy(context.Background(), "u1", "AAPL", 10)
	require.NoError(t, err)

	assert.True(t, res.NewBalance.Equal(dec("8500")))
	assert.Equal(t, 1, f.transactionCount(t, "u1"))
	assert.Equal(t, 1, f.snapshotCount(t, "u1"))
}

func TestBuy_ConcurrentBuysNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.prices.set("AAPL", "1000", false)

	_, err := f.accounts.GetOrCreate(ctx, "u1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 15)
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Buy(ctx, "u1", "AAPL", 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var balanceErr *domain.InsufficientBalanceError
		require.ErrorAs(t, err, &balanceErr)
	}

	assert.Equal(t, 10, succeeded)
	assert.True(t, f.cash(t, "u1").IsZero())

	pos, err := f.positions.Get(ctx, "u1", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos.Shares)
}

func TestSell_NoSuchPosition(t *testing.T) {
	f := newFixture(t)
	f.prices.set("AAPL", "150", false)

	_, err := f.service.Sell(context.Background(), "u1", "AAPL", 1)
	assert.ErrorIs(t, err, domain.ErrNoSuchPosition)
	assert.Equal(t, 0, f.prices.calls)
}

func TestSell_InsufficientSharesLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.prices.set("AAPL", "150", false)

	_, err := f.service.Buy(ctx, "u1", "AAPL", 10)
	require.NoError(t, err)

	_, err = f.service.Sell(ctx, "u1", "AAPL", 11)
	var sharesErr *domain.InsufficientSharesError
	require.ErrorAs(t, err, &sharesErr)
	assert.Equal(t, "insufficient shares of AAPL: requested 11, held 10", err.Error())

	pos, err := f.positions.Get(ctx, "u1", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos.Shares)
	assert.True(t, f.cash(t, "u1").Equal(dec("8500")))
	assert.Equal(t, 1, f.transactionCount(t, "u1"))
}

func TestSell_PartialKeepsAverageCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.prices.set("MSFT", "100", false)

	_, err := f.service.Buy(ctx, "u1", "MSFT", 10)
	require.NoError(t, err)

	f.prices.set("MSFT", "90", false)
	res, err := f.service.Sell(ctx, "u1", "MSFT", 4)
	require.NoError(t, err)

	assert.Equal(t, int64(6), res.RemainingShares)
	assert.True(t, res.ProfitLoss.Equal(dec("-40")))
	assert.True(t, res.NewBalance.Equal(dec("9360")))

	pos, err := f.positions.Get(ctx, "u1", "MSFT")
	require.NoError(t, err)
	assert.True(t, pos.AvgPrice.Equal(dec("100")))
	assert.True(t, pos.TotalCost.Equal(dec("600")))

	history, err := f.transactions.History(ctx, "u1", ledger.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].RealizedPnL)
	assert.True(t, history[0].RealizedPnL.Equal(dec("-40")))
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.prices.set("AAPL", "150", false)

	buy, err := f.service.Preview(ctx, "u1", domain.TradeSideBuy, "AAPL", 10)
	require.NoError(t, err)
	assert.True(t, buy.CanExecute)
	assert.True(t, buy.Total.Equal(dec("1500")))
	assert.True(t, buy.CashBalance.Equal(dec("10000")))

	tooBig, err := f.service.Preview(ctx, "u1", domain.TradeSideBuy, "AAPL", 100)
	require.NoError(t, err)
	assert.False(t, tooBig.CanExecute)
	assert.Contains(t, tooBig.Reason, "required $15,000.00")

	sell, err := f.service.Preview(ctx, "u1", domain.TradeSideSell, "AAPL", 1)
	require.NoError(t, err)
	assert.False(t, sell.CanExecute)
	assert.Contains(t, sell.Reason, "no such position")

	_, err = f.service.Preview(ctx, "u1", "HOLD", "AAPL", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	acct, err := f.accounts.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, acct)
}
