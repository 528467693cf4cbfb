package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createPaymentTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE payments (
		id TEXT PRIMARY KEY,
		psp_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		chain TEXT NOT NULL,
		token_address TEXT NOT NULL,
		receiving_wallet TEXT NOT NULL,
		psp_wallet TEXT NOT NULL,
		status TEXT NOT NULL,
		created_block_number INTEGER,
		customer_address TEXT,
		confirmed_at DATETIME,
		settled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createRoutedTransactionTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE routed_transactions (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL,
		tx_hash TEXT,
		chain TEXT NOT NULL,
		token TEXT NOT NULL,
		amount TEXT NOT NULL,
		target TEXT NOT NULL,
		attempt INTEGER NOT NULL,
		success BOOLEAN NOT NULL,
		cause TEXT,
		error TEXT,
		meta TEXT,
		routed_at DATETIME
	);`)
	mustExec(t, db, `CREATE UNIQUE INDEX uq_routed_tx_psp_success
		ON routed_transactions (payment_id)
		WHERE target = 'psp' AND success = true;`)
}

func createMismatchedPaymentTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE mismatched_payments (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL,
		tx_hash TEXT NOT NULL UNIQUE,
		sender TEXT NOT NULL,
		expected_amount TEXT NOT NULL,
		received_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME
	);`)
}

func createWebhookDeliveryTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE webhook_deliveries (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL,
		event TEXT NOT NULL,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		attempt INTEGER NOT NULL,
		payload TEXT,
		response_code INTEGER,
		response_body TEXT,
		created_at DATETIME
	);`)
}

func createPSPTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE psps (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		payout_wallet TEXT NOT NULL,
		webhook_url TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createPaymentRouteTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE payment_routes (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL,
		chain TEXT NOT NULL,
		token TEXT NOT NULL,
		estimated_fee TEXT NOT NULL,
		estimated_time REAL,
		health_score REAL,
		ranking_score REAL,
		tx_hash TEXT,
		was_used BOOLEAN NOT NULL DEFAULT false,
		decided_at DATETIME
	);`)
}
