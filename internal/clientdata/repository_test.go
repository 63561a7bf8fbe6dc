package clientdata

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE quotes (cache_key TEXT PRIMARY KEY, data BLOB NOT NULL, fetched_at INTEGER NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE symbol_search (cache_key TEXT PRIMARY KEY, data BLOB NOT NULL, fetched_at INTEGER NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE crypto_prices (cache_key TEXT PRIMARY KEY, data BLOB NOT NULL, fetched_at INTEGER NOT NULL, expires_at INTEGER NOT NULL);
`

type cachedQuote struct {
	Symbol string  `msgpack:"symbol"`
	Price  float64 `msgpack:"price"`
}

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Each pooled connection would get its own in-memory database
	db.SetMaxOpenConns(1)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newClockedRepo(t *testing.T) (*Repository, *clock, *sql.DB) {
	db := setupTestDB(t)
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	return NewRepository(db).WithClock(c.Now), c, db
}

func TestStore_UpsertAndGet(t *testing.T) {
	repo, _, db := newClockedRepo(t)
	defer db.Close()

	require.NoError(t, repo.Store(TableQuotes, "AAPL", cachedQuote{Symbol: "AAPL", Price: 150}, TTLQuote))
	require.NoError(t, repo.Store(TableQuotes, "AAPL", cachedQuote{Symbol: "AAPL", Price: 151.5}, TTLQuote))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM quotes").Scan(&count))
	assert.Equal(t, 1, count)

	var got cachedQuote
	entry, err := repo.Get(TableQuotes, "AAPL", &got)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 151.5, got.Price)
	assert.Equal(t, int64(1_700_000_000), entry.FetchedAt.Unix())
	assert.Equal(t, int64(1_700_000_300), entry.ExpiresAt.Unix())
}

func TestGetIfFresh_ExpiredReturnsNilButGetStillServes(t *testing.T) {
	repo, c, db := newClockedRepo(t)
	defer db.Close()

	require.NoError(t, repo.Store(TableQuotes, "MSFT", cachedQuote{Symbol: "MSFT", Price: 300}, TTLQuote))

	var fresh cachedQuote
	entry, err := repo.GetIfFresh(TableQuotes, "MSFT", &fresh)
	require.NoError(t, err)
	require.NotNil(t, entry)

	c.t = c.t.Add(6 * time.Minute)

	var expired cachedQuote
	entry, err = repo.GetIfFresh(TableQuotes, "MSFT", &expired)
	require.NoError(t, err)
	assert.Nil(t, entry)

	var stale cachedQuote
	entry, err = repo.Get(TableQuotes, "MSFT", &stale)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 300.0, stale.Price)
	assert.False(t, entry.Fresh(c.t))
}

func TestGet_MissingKey(t *testing.T) {
	repo, _, db := newClockedRepo(t)
	defer db.Close()

	var got cachedQuote
	entry, err := repo.Get(TableQuotes, "NOPE", &got)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestInvalidTable(t *testing.T) {
	repo, _, db := newClockedRepo(t)
	defer db.Close()

	err := repo.Store("quotes; DROP TABLE quotes", "x", 1, time.Minute)
	assert.Error(t, err)

	_, err = repo.DeleteExpired("nope", time.Hour)
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	repo, _, db := newClockedRepo(t)
	defer db.Close()

	require.NoError(t, repo.Store(TableSymbolSearch, "apple", []string{"AAPL"}, TTLSymbolSearch))
	require.NoError(t, repo.Delete(TableSymbolSearch, "apple"))

	var got []string
	entry, err := repo.Get(TableSymbolSearch, "apple", &got)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestDeleteExpired_HonorsRetention(t *testing.T) {
	repo, c, db := newClockedRepo(t)
	defer db.Close()

	require.NoError(t, repo.Store(TableQuotes, "OLD", cachedQuote{Price: 1}, TTLQuote))
	c.t = c.t.Add(2 * time.Hour)
	require.NoError(t, repo.Store(TableQuotes, "RECENT", cachedQuote{Price: 2}, TTLQuote))
	c.t = c.t.Add(10 * time.Minute)

	// Both expired, but only OLD is beyond a one hour retention
	deleted, err := repo.DeleteExpired(TableQuotes, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var got cachedQuote
	entry, err := repo.Get(TableQuotes, "RECENT", &got)
	require.NoError(t, err)
	assert.NotNil(t, entry)
}

func TestCleanupJob_Run(t *testing.T) {
	repo, c, db := newClockedRepo(t)
	defer db.Close()

	require.NoError(t, repo.Store(TableQuotes, "A", cachedQuote{Price: 1}, TTLQuote))
	require.NoError(t, repo.Store(TableCryptoPrices, "bitcoin", cachedQuote{Price: 2}, TTLCryptoPrice))
	require.NoError(t, repo.Store(TableSymbolSearch, "apple", []string{"AAPL"}, TTLSymbolSearch))
	c.t = c.t.Add(48 * time.Hour)

	job := NewCleanupJob(repo, DefaultStaleRetention, zerolog.Nop())
	assert.Equal(t, "client_data_cleanup", job.Name())
	require.NoError(t, job.Run())

	var count int
	require.NoError(t, db.QueryRow("SELECT (SELECT COUNT(*) FROM quotes) + (SELECT COUNT(*) FROM crypto_prices) + (SELECT COUNT(*) FROM symbol_search)").Scan(&count))
	assert.Equal(t, 1, count) // symbol search still within its 7 day TTL
}

func TestCleanupJob_EmptyTables(t *testing.T) {
	repo, _, db := newClockedRepo(t)
	defer db.Close()

	job := NewCleanupJob(repo, time.Hour, zerolog.Nop())
	assert.NoError(t, job.Run())
}
