package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/finsight/papertrade/internal/clientdata"
	"github.com/finsight/papertrade/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Store holds the last known quote per symbol. Get returns entries of any
// age; freshness is judged by the caller from FetchedAt.
type Store interface {
	Get(ctx context.Context, symbol string) (*domain.Quote, error)
	Put(ctx context.Context, quote *domain.Quote) error
}

// cachedQuote is the persisted form of a quote
type cachedQuote struct {
	Symbol        string          `msgpack:"symbol"`
	Price         decimal.Decimal `msgpack:"price"`
	DayHigh       decimal.Decimal `msgpack:"day_high"`
	DayLow        decimal.Decimal `msgpack:"day_low"`
	ChangePercent decimal.Decimal `msgpack:"change_percent"`
	FetchedAt     time.Time       `msgpack:"fetched_at"`
}

func toCached(q *domain.Quote) cachedQuote {
	return cachedQuote{
		Symbol:        q.Symbol,
		Price:         q.Price,
		DayHigh:       q.DayHigh,
		DayLow:        q.DayLow,
		ChangePercent: q.ChangePercent,
		FetchedAt:     q.FetchedAt,
	}
}

func (c cachedQuote) toQuote() *domain.Quote {
	return &domain.Quote{
		Symbol:        c.Symbol,
		Price:         c.Price,
		DayHigh:       c.DayHigh,
		DayLow:        c.DayLow,
		ChangePercent: c.ChangePercent,
		FetchedAt:     c.FetchedAt,
	}
}

// MemoryStore is a bounded in-process tier. Entries never expire here so a
// stale price stays available for fallback until evicted by cost.
type MemoryStore struct {
	cache *ristretto.Cache
}

// NewMemoryStore creates a tier holding roughly maxEntries quotes
func NewMemoryStore(maxEntries int64) (*MemoryStore, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create quote memory cache: %w", err)
	}
	return &MemoryStore{cache: cache}, nil
}

// Get implements Store
func (m *MemoryStore) Get(_ context.Context, symbol string) (*domain.Quote, error) {
	v, ok := m.cache.Get(symbol)
	if !ok {
		return nil, nil
	}
	c, ok := v.(cachedQuote)
	if !ok {
		return nil, nil
	}
	return c.toQuote(), nil
}

// Put implements Store
func (m *MemoryStore) Put(_ context.Context, quote *domain.Quote) error {
	m.cache.Set(quote.Symbol, toCached(quote), 1)
	m.cache.Wait()
	return nil
}

// Close releases the cache goroutines
func (m *MemoryStore) Close() {
	m.cache.Close()
}

// PersistentStore keeps quotes in client_data.db so they survive restarts
type PersistentStore struct {
	repo *clientdata.Repository
	ttl  time.Duration
}

// NewPersistentStore creates a store whose rows expire after ttl. Expired rows
// remain readable until the cleanup job prunes them.
func NewPersistentStore(repo *clientdata.Repository, ttl time.Duration) *PersistentStore {
	return &PersistentStore{repo: repo, ttl: ttl}
}

// Get implements Store
func (p *PersistentStore) Get(_ context.Context, symbol string) (*domain.Quote, error) {
	var c cachedQuote
	entry, err := p.repo.Get(clientdata.TableQuotes, symbol, &c)
	if err != nil || entry == nil {
		return nil, err
	}
	return c.toQuote(), nil
}

// Put implements Store
func (p *PersistentStore) Put(_ context.Context, quote *domain.Quote) error {
	return p.repo.Store(clientdata.TableQuotes, quote.Symbol, toCached(quote), p.ttl)
}

// TieredStore reads memory first and falls through to the persistent tier,
// back-filling memory on a persistent hit. Writes go to both tiers.
type TieredStore struct {
	memory     Store
	persistent Store
	log        zerolog.Logger
}

// NewTieredStore combines two stores
func NewTieredStore(memory, persistent Store, log zerolog.Logger) *TieredStore {
	return &TieredStore{
		memory:     memory,
		persistent: persistent,
		log:        log.With().Str("repo", "quote_store").Logger(),
	}
}

// Get implements Store
func (t *TieredStore) Get(ctx context.Context, symbol string) (*domain.Quote, error) {
	if q, err := t.memory.Get(ctx, symbol); err == nil && q != nil {
		return q, nil
	}

	q, err := t.persistent.Get(ctx, symbol)
	if err != nil || q == nil {
		return nil, err
	}
	if err := t.memory.Put(ctx, q); err != nil {
		t.log.Debug().Err(err).Str("symbol", symbol).Msg("Failed to back-fill memory tier")
	}
	return q, nil
}

// Put implements Store. The memory tier is always written; a persistent
// failure is returned after the memory write.
func (t *TieredStore) Put(ctx context.Context, quote *domain.Quote) error {
	_ = t.memory.Put(ctx, quote)
	if err := t.persistent.Put(ctx, quote); err != nil {
		return fmt.Errorf("failed to persist quote %s: %w", quote.Symbol, err)
	}
	return nil
}
