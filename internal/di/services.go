package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/finsight/papertrade/internal/auth"
	"github.com/finsight/papertrade/internal/clientdata"
	"github.com/finsight/papertrade/internal/clients/alphavantage"
	"github.com/finsight/papertrade/internal/clients/coingecko"
	"github.com/finsight/papertrade/internal/config"
	"github.com/finsight/papertrade/internal/events"
	"github.com/finsight/papertrade/internal/modules/accounts"
	"github.com/finsight/papertrade/internal/modules/ledger"
	"github.com/finsight/papertrade/internal/modules/portfolio"
	"github.com/finsight/papertrade/internal/modules/quotes"
	"github.com/finsight/papertrade/internal/modules/snapshots"
	"github.com/finsight/papertrade/internal/modules/trading"
	"github.com/finsight/papertrade/internal/modules/watchlist"
	"github.com/finsight/papertrade/internal/reliability"
)

// InitializeRepositories creates all repositories over the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container.PortfolioDB == nil || container.LedgerDB == nil || container.ClientDataDB == nil {
		return fmt.Errorf("databases must be initialized before repositories")
	}

	container.ClientDataRepo = clientdata.NewRepository(container.ClientDataDB.Conn())
	container.AccountRepo = accounts.NewRepository(container.PortfolioDB.Conn(), log)
	container.PositionRepo = portfolio.NewPositionRepository(container.PortfolioDB.Conn(), log)
	container.SnapshotRepo = snapshots.NewRepository(container.PortfolioDB.Conn(), log)
	container.WatchlistRepo = watchlist.NewRepository(container.PortfolioDB.Conn(), log)
	container.TransactionRepo = ledger.NewRepository(container.LedgerDB.Conn(), log)

	log.Info().Msg("Repositories initialized")
	return nil
}

// InitializeServices creates clients, the event pipeline and the services
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	// Events: in-process bus, plus Kafka when brokers are configured
	container.EventBus = events.NewBus(log)
	var sinks []events.Sink
	if cfg.Kafka.Enabled() {
		container.KafkaSink = events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ClientID, log)
		sinks = append(sinks, container.KafkaSink)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka event sink enabled")
	}
	container.EventManager = events.NewManager(container.EventBus, log, sinks...)

	// Market data clients
	container.AlphaVantageClient = alphavantage.NewClient(
		cfg.Quotes.AlphaVantageAPIKey,
		log,
		alphavantage.WithBaseURL(cfg.Quotes.AlphaVantageURL),
		alphavantage.WithLimits(cfg.Quotes.CallsPerMinute, cfg.Quotes.CallsPerDay),
	)
	container.CoinGeckoClient = coingecko.NewClient(cfg.Quotes.CoinGeckoURL, container.ClientDataRepo, log)

	// Quote cache: ristretto in front of client_data.db
	memoryStore, err := quotes.NewMemoryStore(cfg.Quotes.MemoryMaxEntries)
	if err != nil {
		return fmt.Errorf("failed to create quote memory store: %w", err)
	}
	container.QuoteMemoryStore = memoryStore
	store := quotes.NewTieredStore(
		memoryStore,
		quotes.NewPersistentStore(container.ClientDataRepo, cfg.Quotes.TTL),
		log,
	)
	container.QuoteService = quotes.NewService(container.AlphaVantageClient, store, container.EventManager, quotes.Config{
		TTL:             cfg.Quotes.TTL,
		FetchTimeout:    cfg.Quotes.FetchTimeout,
		BatchMaxFetches: cfg.Quotes.BatchMaxFetches,
		BatchDelay:      cfg.Quotes.BatchDelay,
		BatchBudget:     cfg.Quotes.BatchBudget,
	}, log)
	container.SearchService = quotes.NewSearchService(container.AlphaVantageClient, container.ClientDataRepo, log)

	// Accounts and holdings
	container.AccountService = accounts.NewService(
		container.PortfolioDB.Conn(),
		container.AccountRepo,
		container.SnapshotRepo,
		container.EventManager,
		log,
	)
	container.Ledger = portfolio.NewLedger(container.PortfolioDB.Conn(), container.AccountRepo, container.PositionRepo, log)
	container.PortfolioService = portfolio.NewService(container.AccountService, container.PositionRepo, container.QuoteService, log)

	// History
	container.TransactionLog = ledger.NewLog(container.TransactionRepo, log)
	container.SnapshotRecorder = snapshots.NewRecorder(
		container.AccountService,
		container.PositionRepo,
		container.SnapshotRepo,
		container.EventManager,
		log,
	)
	container.SnapshotService = snapshots.NewService(container.AccountService, container.SnapshotRepo, log)

	// Trade orchestration
	container.TradingService = trading.NewService(
		container.AccountService,
		container.PositionRepo,
		container.Ledger,
		container.QuoteService,
		container.TransactionLog,
		container.SnapshotRecorder,
		container.EventManager,
		log,
	)

	// Backups
	if cfg.Backup.Enabled() {
		store, err := reliability.NewS3Store(context.Background(), cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to create backup store: %w", err)
		}
		container.BackupService = reliability.NewBackupService(store, container.Databases(), cfg.DataDir, cfg.Backup.Prefix, log)
	}

	// Credentials
	verifier, err := newVerifier(cfg, log)
	if err != nil {
		return err
	}
	container.Verifier = verifier

	log.Info().Msg("Services initialized")
	return nil
}

// newVerifier returns the HMAC verifier, or the development verifier that
// trusts the bearer value as the user id when DevMode runs without a secret
func newVerifier(cfg *config.Config, log zerolog.Logger) (auth.Verifier, error) {
	if cfg.AuthSecret == "" {
		if !cfg.DevMode {
			return nil, fmt.Errorf("auth secret is required outside dev mode")
		}
		log.Warn().Msg("DEV_MODE without AUTH_SECRET: bearer tokens are trusted as user ids")
		return auth.DevVerifier{}, nil
	}

	verifier, err := auth.NewHMACVerifier(cfg.AuthSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create verifier: %w", err)
	}
	return verifier, nil
}
