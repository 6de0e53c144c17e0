package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
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

func tableExists(t *testing.T, db *DB, table string) bool {
	t.Helper()
	var count int
	err := db.Conn().QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table,
	).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func TestMigrate_Ledger(t *testing.T) {
	db := newTestDB(t, "ledger", ProfileLedger)

	require.NoError(t, db.Migrate())
	// Idempotent
	require.NoError(t, db.Migrate())

	for _, table := range []string{"positions", "operations", "accounts", "cash_flows"} {
		assert.True(t, tableExists(t, db, table), table)
	}
}

func TestMigrate_Cache(t *testing.T) {
	db := newTestDB(t, "cache", ProfileCache)

	require.NoError(t, db.Migrate())

	for _, table := range []string{"quotes", "snapshots", "job_history"} {
		assert.True(t, tableExists(t, db, table), table)
	}
}

func TestMigrate_UnknownSchema(t *testing.T) {
	db := newTestDB(t, "universe", ProfileStandard)
	assert.Error(t, db.Migrate())
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newTestDB(t, "ledger", ProfileLedger)
	require.NoError(t, db.Migrate())

	boom := errors.New("boom")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO accounts (id, currency, balance, created_at, updated_at)
			VALUES ('main', 'BRL', '100', 0, 0)`)
		require.NoError(t, err)
		return boom
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM accounts").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestWithTransaction_RecoversPanic(t *testing.T) {
	db := newTestDB(t, "ledger", ProfileLedger)
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		panic("unexpected")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")
}

func TestWithTransaction_Commits(t *testing.T) {
	db := newTestDB(t, "ledger", ProfileLedger)
	require.NoError(t, db.Migrate())

	err := WithTransactionContext(context.Background(), db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO accounts (id, currency, balance, created_at, updated_at)
			VALUES ('main', 'BRL', '100', 0, 0)`)
		return err
	})
	require.NoError(t, err)

	var balance string
	require.NoError(t, db.Conn().QueryRow("SELECT balance FROM accounts WHERE id = 'main'").Scan(&balance))
	assert.Equal(t, "100", balance)
}

func TestBackupTo(t *testing.T) {
	db := newTestDB(t, "ledger", ProfileLedger)
	require.NoError(t, db.Migrate())
	_, err := db.Conn().Exec(`INSERT INTO accounts (id, currency, balance, created_at, updated_at)
		VALUES ('main', 'BRL', '42.5', 0, 0)`)
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "backup", "ledger.db")
	require.NoError(t, db.BackupTo(context.Background(), target))
	// A second backup replaces the first
	require.NoError(t, db.BackupTo(context.Background(), target))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	copyDB, err := New(Config{Path: target, Profile: ProfileStandard, Name: "ledger"})
	require.NoError(t, err)
	defer copyDB.Close()

	var balance string
	require.NoError(t, copyDB.Conn().QueryRow("SELECT balance FROM accounts WHERE id = 'main'").Scan(&balance))
	assert.Equal(t, "42.5", balance)
}

func TestHealthCheck(t *testing.T) {
	db := newTestDB(t, "cache", ProfileCache)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, db.QuickCheck(context.Background()))
	assert.NoError(t, db.WALCheckpoint(""))
	assert.Error(t, db.WALCheckpoint("bogus"))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageSize, int64(0))
}

func TestBuildConnectionString(t *testing.T) {
	ledger := buildConnectionString("/tmp/ledger.db", ProfileLedger)
	assert.Contains(t, ledger, "synchronous(FULL)")
	assert.Contains(t, ledger, "_txlock=immediate")
	assert.Contains(t, ledger, "foreign_keys(1)")

	cache := buildConnectionString("/tmp/cache.db", ProfileCache)
	assert.Contains(t, cache, "synchronous(OFF)")
	assert.NotContains(t, cache, "_txlock")
}
