package migration

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "dues.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrator_SQLiteUpAndDown(t *testing.T) {
	db := openSQLite(t)
	m, err := New(db, DialectSQLite, zap.NewNop())
	require.NoError(t, err)

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, m.Up())
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	// second run is a no-op
	require.NoError(t, m.Up())

	require.NoError(t, m.Steps(-1))
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, m.Down())
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestMigrator_SQLiteLedgerIsAppendOnly(t *testing.T) {
	db := openSQLite(t)
	m, err := New(db, DialectSQLite, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())

	_, err = db.Exec(`INSERT INTO obligations (id, kind, external_id, occurred_on, total_amount, paid_amount, status, created_at, updated_at)
		VALUES ('o-1', 'SALE', 'INV-1', '2026-03-01', 100, 0, 'UNPAID', '2026-03-01 00:00:00', '2026-03-01 00:00:00')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO payment_events (id, obligation_id, sequence, payment_number, amount, method, occurred_at, recorded_at)
		VALUES ('p-1', 'o-1', 1, 'PAY-1', 40, 'CASH', '2026-03-02 00:00:00', '2026-03-02 00:00:00')`)
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE payment_events SET amount = 400 WHERE id = 'p-1'`)
	assert.ErrorContains(t, err, "append-only")
	_, err = db.Exec(`DELETE FROM payment_events WHERE id = 'p-1'`)
	assert.ErrorContains(t, err, "append-only")

	t.Run("constraints", func(t *testing.T) {
		_, err := db.Exec(`INSERT INTO payment_events (id, obligation_id, sequence, payment_number, amount, method, occurred_at, recorded_at)
			VALUES ('p-2', 'o-1', 1, 'PAY-2', 10, 'CASH', '2026-03-02 00:00:00', '2026-03-02 00:00:00')`)
		assert.Error(t, err, "duplicate sequence")

		_, err = db.Exec(`INSERT INTO payment_events (id, obligation_id, sequence, payment_number, amount, method, occurred_at, recorded_at)
			VALUES ('p-3', 'o-1', 2, 'PAY-3', 0, 'CASH', '2026-03-02 00:00:00', '2026-03-02 00:00:00')`)
		assert.Error(t, err, "zero amount")

		_, err = db.Exec(`INSERT INTO payment_events (id, obligation_id, sequence, payment_number, amount, method, occurred_at, recorded_at)
			VALUES ('p-4', 'missing', 1, 'PAY-4', 10, 'CASH', '2026-03-02 00:00:00', '2026-03-02 00:00:00')`)
		assert.Error(t, err, "unknown obligation")
	})
}

func TestMigrator_UnsupportedDialect(t *testing.T) {
	_, err := New(openSQLite(t), "oracle", zap.NewNop())
	assert.Error(t, err)
}
