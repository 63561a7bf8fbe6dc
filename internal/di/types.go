package di

import (
	"github.com/finsight/papertrade/internal/auth"
	"github.com/finsight/papertrade/internal/clientdata"
	"github.com/finsight/papertrade/internal/clients/alphavantage"
	"github.com/finsight/papertrade/internal/clients/coingecko"
	"github.com/finsight/papertrade/internal/config"
	"github.com/finsight/papertrade/internal/database"
	"github.com/finsight/papertrade/internal/events"
	"github.com/finsight/papertrade/internal/modules/accounts"
	"github.com/finsight/papertrade/internal/modules/ledger"
	"github.com/finsight/papertrade/internal/modules/portfolio"
	"github.com/finsight/papertrade/internal/modules/quotes"
	"github.com/finsight/papertrade/internal/modules/snapshots"
	"github.com/finsight/papertrade/internal/modules/trading"
	"github.com/finsight/papertrade/internal/modules/watchlist"
	"github.com/finsight/papertrade/internal/reliability"
	"github.com/finsight/papertrade/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config

	// Databases
	PortfolioDB  *database.DB // accounts, positions, snapshots, watchlist
	LedgerDB     *database.DB // append-only transaction log
	ClientDataDB *database.DB // provider response cache

	// Repositories
	ClientDataRepo  *clientdata.Repository
	AccountRepo     *accounts.Repository
	PositionRepo    *portfolio.PositionRepository
	TransactionRepo *ledger.Repository
	SnapshotRepo    *snapshots.Repository
	WatchlistRepo   *watchlist.Repository

	// Clients
	AlphaVantageClient *alphavantage.Client
	CoinGeckoClient    *coingecko.Client

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager
	KafkaSink    *events.KafkaSink // nil unless brokers are configured

	// Services
	QuoteMemoryStore *quotes.MemoryStore
	QuoteService     *quotes.Service
	SearchService    *quotes.SearchService
	AccountService   *accounts.Service
	Ledger           *portfolio.Ledger
	PortfolioService *portfolio.Service
	TransactionLog   *ledger.Log
	SnapshotRecorder *snapshots.Recorder
	SnapshotService  *snapshots.Service
	TradingService   *trading.Service
	BackupService    *reliability.BackupService // nil unless a bucket is configured

	Verifier  auth.Verifier
	Scheduler *scheduler.Scheduler
}

// JobInstances holds job references for manual triggering
type JobInstances struct {
	Snapshots      scheduler.Job
	CacheCleanup   scheduler.Job
	WALCheck       scheduler.Job
	IntegrityCheck scheduler.Job
	Maintenance    scheduler.Job
	Backup         scheduler.Job // nil when backups are disabled
}

// Databases returns the open databases in a stable order
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.PortfolioDB, c.LedgerDB, c.ClientDataDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close releases background resources and closes the databases
func (c *Container) Close() error {
	if c.KafkaSink != nil {
		_ = c.KafkaSink.Close()
	}
	if c.QuoteMemoryStore != nil {
		c.QuoteMemoryStore.Close()
	}

	var firstErr error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
