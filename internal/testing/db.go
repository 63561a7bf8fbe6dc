// Package testing provides test helpers shared across the papertrade packages.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/finsight/papertrade/internal/database"
)

var profiles = map[string]database.DatabaseProfile{
	database.NamePortfolio:  database.ProfileStandard,
	database.NameLedger:     database.ProfileLedger,
	database.NameClientData: database.ProfileCache,
}

// NewTestDB creates a file-backed SQLite database in a per-test temp dir and
// applies the embedded schema for name.
// Returns the database and an idempotent cleanup function.
//
// Supported schema names:
//   - "portfolio" - accounts, positions, snapshots, watchlist
//   - "ledger" - transactions
//   - "client_data" - quote/search/crypto caches
//   - Unknown names - empty database
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	profile, ok := profiles[name]
	if !ok {
		profile = database.ProfileStandard
	}

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	closed := false
	return db, func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	}
}
