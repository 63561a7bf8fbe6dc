// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir   string `env:"PAPERTRADE_DATA_DIR" envDefault:"./data"` // Base directory for all databases (always absolute after Load)
	Port      int    `env:"PORT" envDefault:"8001"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
	DevMode   bool   `env:"DEV_MODE" envDefault:"false"`

	// AuthSecret signs and verifies bearer tokens. Required unless DevMode.
	AuthSecret string `env:"AUTH_SECRET"`
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`

	Quotes    QuotesConfig    `envPrefix:"QUOTES_"`
	Kafka     KafkaConfig     `envPrefix:"KAFKA_"`
	Backup    BackupConfig    `envPrefix:"BACKUP_"`
	Schedules SchedulesConfig `envPrefix:"SCHEDULE_"`
}

// QuotesConfig configures the quote providers and the quote cache
type QuotesConfig struct {
	AlphaVantageAPIKey string        `env:"ALPHAVANTAGE_API_KEY"`
	AlphaVantageURL    string        `env:"ALPHAVANTAGE_URL" envDefault:"https://www.alphavantage.co/query"`
	CoinGeckoURL       string        `env:"COINGECKO_URL" envDefault:"https://api.coingecko.com/api/v3"`
	CallsPerMinute     int           `env:"CALLS_PER_MINUTE" envDefault:"5"`
	CallsPerDay        int           `env:"CALLS_PER_DAY" envDefault:"25"`
	TTL                time.Duration `env:"TTL" envDefault:"5m"`
	FetchTimeout       time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`
	StaleRetention     time.Duration `env:"STALE_RETENTION" envDefault:"24h"`
	MemoryMaxEntries   int64         `env:"MEMORY_MAX_ENTRIES" envDefault:"10000"`
	BatchMaxFetches    int           `env:"BATCH_MAX_FETCHES" envDefault:"5"`
	BatchDelay         time.Duration `env:"BATCH_DELAY" envDefault:"12s"`
	BatchBudget        time.Duration `env:"BATCH_BUDGET" envDefault:"60s"`
}

// KafkaConfig configures the optional event publisher
type KafkaConfig struct {
	Brokers  []string `env:"BROKERS" envSeparator:","`
	Topic    string   `env:"TOPIC" envDefault:"papertrade.events"`
	ClientID string   `env:"CLIENT_ID" envDefault:"papertrade"`
}

// Enabled reports whether events should be published to Kafka
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

// BackupConfig configures database backups to S3-compatible storage
type BackupConfig struct {
	Bucket          string `env:"BUCKET"`
	Region          string `env:"REGION" envDefault:"auto"`
	Endpoint        string `env:"ENDPOINT"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	Prefix          string `env:"PREFIX" envDefault:"papertrade-backups/"`
	RetentionDays   int    `env:"RETENTION_DAYS" envDefault:"30"`
}

// Enabled reports whether a backup destination is configured
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// SchedulesConfig holds cron expressions (with seconds) for background jobs
type SchedulesConfig struct {
	Snapshots      string `env:"SNAPSHOTS" envDefault:"0 0 21 * * *"`
	CacheCleanup   string `env:"CACHE_CLEANUP" envDefault:"0 5 * * * *"`
	Backup         string `env:"BACKUP" envDefault:"0 30 3 * * *"`
	WALCheckpoint  string `env:"WAL_CHECKPOINT" envDefault:"0 0 * * * *"`
	IntegrityCheck string `env:"INTEGRITY_CHECK" envDefault:"0 15 4 * * *"`
	Maintenance    string `env:"MAINTENANCE" envDefault:"0 0 4 * * 0"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg.DataDir = absDataDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.AuthSecret == "" && !c.DevMode {
		return errors.New("AUTH_SECRET is required unless DEV_MODE=true")
	}
	if c.Quotes.TTL <= 0 {
		return fmt.Errorf("QUOTES_TTL must be positive, got %s", c.Quotes.TTL)
	}
	if c.Quotes.FetchTimeout <= 0 {
		return fmt.Errorf("QUOTES_FETCH_TIMEOUT must be positive, got %s", c.Quotes.FetchTimeout)
	}
	if c.Quotes.CallsPerMinute <= 0 {
		return fmt.Errorf("QUOTES_CALLS_PER_MINUTE must be positive, got %d", c.Quotes.CallsPerMinute)
	}
	// Batch spacing must respect the provider's per-minute ceiling
	minDelay := time.Minute / time.Duration(c.Quotes.CallsPerMinute)
	if c.Quotes.BatchDelay < minDelay {
		return fmt.Errorf("QUOTES_BATCH_DELAY %s is below the provider minimum spacing %s", c.Quotes.BatchDelay, minDelay)
	}
	if c.Quotes.BatchMaxFetches < 0 {
		return fmt.Errorf("QUOTES_BATCH_MAX_FETCHES must not be negative, got %d", c.Quotes.BatchMaxFetches)
	}
	return nil
}
