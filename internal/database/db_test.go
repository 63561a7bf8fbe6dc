package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBuildConnectionString_Profiles(t *testing.T) {
	ledger := buildConnectionString("/tmp/ledger.db", ProfileLedger)
	assert.Contains(t, ledger, "synchronous(FULL)")
	assert.Contains(t, ledger, "_txlock=immediate")
	assert.Contains(t, ledger, "busy_timeout(5000)")

	cache := buildConnectionString("/tmp/cache.db", ProfileCache)
	assert.Contains(t, cache, "synchronous(OFF)")
	assert.Contains(t, cache, "auto_vacuum(FULL)")

	standard := buildConnectionString("/tmp/p.db", ProfileStandard)
	assert.Contains(t, standard, "synchronous(NORMAL)")
}

func TestMigrate_AllSchemasIdempotent(t *testing.T) {
	for _, tc := range []struct {
		name    string
		profile DatabaseProfile
		table   string
	}{
		{NamePortfolio, ProfileStandard, "accounts"},
		{NameLedger, ProfileLedger, "transactions"},
		{NameClientData, ProfileCache, "quotes"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			db := newTestDB(t, tc.name, tc.profile)
			require.NoError(t, db.Migrate())
			require.NoError(t, db.Migrate())

			var count int
			err := db.Conn().QueryRow(
				"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", tc.table,
			).Scan(&count)
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := newTestDB(t, "scratch", ProfileStandard)
	assert.NoError(t, db.Migrate())
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newTestDB(t, NamePortfolio, ProfileStandard)
	require.NoError(t, db.Migrate())

	errBoom := errors.New("boom")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO accounts (user_id, cash_balance, total_invested, created_at, updated_at)
			VALUES ('u1', 10000, 0, 1, 1)`)
		require.NoError(t, err)
		return errBoom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM accounts").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestWithTransaction_RecoversPanic(t *testing.T) {
	db := newTestDB(t, NamePortfolio, ProfileStandard)

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("kaboom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction: kaboom")
}

func TestWithTransaction_NilDB(t *testing.T) {
	err := WithTransaction(nil, func(tx *sql.Tx) error { return nil })
	assert.Error(t, err)
}

func TestCheckConstraint_RejectsNegativeCash(t *testing.T) {
	db := newTestDB(t, NamePortfolio, ProfileStandard)
	require.NoError(t, db.Migrate())

	_, err := db.ExecContext(context.Background(), `INSERT INTO accounts (user_id, cash_balance, total_invested, created_at, updated_at)
		VALUES ('u1', -1, 0, 1, 1)`)
	assert.Error(t, err)
}

func TestWALCheckpoint_And_Stats(t *testing.T) {
	db := newTestDB(t, NameLedger, ProfileLedger)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.WALCheckpoint(""))
	assert.NoError(t, db.WALCheckpoint("PASSIVE"))
	assert.Error(t, db.WALCheckpoint("DROP TABLE"))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageSize, int64(0))
	assert.NoError(t, db.HealthCheck(context.Background()))
}

func TestVacuumInto(t *testing.T) {
	db := newTestDB(t, NamePortfolio, ProfileStandard)
	require.NoError(t, db.Migrate())

	dest := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, db.VacuumInto(context.Background(), dest))
	assert.FileExists(t, dest)
}
