// Package clientdata provides persistent caching for external API client responses.
// Entries are stored as msgpack blobs with fetch and expiry timestamps; expired
// entries stay readable as a stale fallback until the cleanup job prunes them.
package clientdata

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Table names in client_data.db
const (
	TableQuotes       = "quotes"
	TableSymbolSearch = "symbol_search"
	TableCryptoPrices = "crypto_prices"
)

// AllTables lists all tables in client_data.db for cleanup operations.
var AllTables = []string{
	TableQuotes,
	TableSymbolSearch,
	TableCryptoPrices,
}

var validTables = func() map[string]bool {
	m := make(map[string]bool, len(AllTables))
	for _, t := range AllTables {
		m[t] = true
	}
	return m
}()

// Entry is a decoded cache row with its timestamps
type Entry struct {
	FetchedAt time.Time
	ExpiresAt time.Time
}

// Fresh reports whether the entry is still inside its TTL at now
func (e Entry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Repository provides cache operations for client data.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// WithClock returns a copy of the repository using now as its clock
func (r *Repository) WithClock(now func() time.Time) *Repository {
	return &Repository{db: r.db, now: now}
}

// validateTable guards the table name, which is interpolated into SQL
func validateTable(table string) error {
	if !validTables[table] {
		return fmt.Errorf("invalid table name: %s", table)
	}
	return nil
}

// Store saves data with fetched_at = now and expires_at = now + ttl (upsert).
func (r *Repository) Store(table, key string, data interface{}, ttl time.Duration) error {
	if err := validateTable(table); err != nil {
		return err
	}

	blob, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	now := r.now()
	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (cache_key, data, fetched_at, expires_at) VALUES (?, ?, ?, ?)",
		table,
	)

	if _, err := r.db.Exec(query, key, blob, now.Unix(), now.Add(ttl).Unix()); err != nil {
		return fmt.Errorf("failed to store data in %s: %w", table, err)
	}

	return nil
}

// GetIfFresh decodes the entry into dest only if it has not expired.
// Returns nil, nil if the key doesn't exist or the entry is expired.
func (r *Repository) GetIfFresh(table, key string, dest interface{}) (*Entry, error) {
	entry, err := r.Get(table, key, dest)
	if err != nil || entry == nil {
		return nil, err
	}
	if !entry.Fresh(r.now()) {
		return nil, nil
	}
	return entry, nil
}

// Get decodes the entry into dest regardless of expiration status.
// Returns nil, nil if the key doesn't exist.
func (r *Repository) Get(table, key string, dest interface{}) (*Entry, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT data, fetched_at, expires_at FROM %s WHERE cache_key = ?",
		table,
	)

	var (
		blob                 []byte
		fetchedAt, expiresAt int64
	)
	err := r.db.QueryRow(query, key).Scan(&blob, &fetchedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}

	if err := msgpack.Unmarshal(blob, dest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s entry %s: %w", table, key, err)
	}

	return &Entry{
		FetchedAt: time.Unix(fetchedAt, 0),
		ExpiresAt: time.Unix(expiresAt, 0),
	}, nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(table, key string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	if _, err := r.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE cache_key = ?", table), key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	return nil
}

// DeleteExpired removes rows that expired more than retention ago.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired(table string, retention time.Duration) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	cutoff := r.now().Add(-retention).Unix()
	result, err := r.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", table), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}

	return deleted, nil
}

// DeleteAllExpired prunes every table and returns rows deleted per table.
func (r *Repository) DeleteAllExpired(retention time.Duration) (map[string]int64, error) {
	results := make(map[string]int64)

	for _, table := range AllTables {
		deleted, err := r.DeleteExpired(table, retention)
		if err != nil {
			return results, err
		}
		results[table] = deleted
	}

	return results, nil
}
