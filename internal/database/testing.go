package database

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// testDatabaseEnv names the variable that enables Postgres integration tests.
const testDatabaseEnv = "TEST_DATABASE_URL"

var (
	sharedPool     *pgxpool.Pool
	sharedPoolOnce sync.Once
	sharedPoolErr  error
)

// TestPool returns a migrated pool shared by every test in the binary, or
// skips the test when TEST_DATABASE_URL is unset.
func TestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv(testDatabaseEnv)
	if dbURL == "" {
		t.Skip(testDatabaseEnv + " not set, skipping integration test")
	}

	sharedPoolOnce.Do(func() {
		ctx := context.Background()
		sharedPool, sharedPoolErr = Connect(ctx, dbURL)
		if sharedPoolErr == nil {
			sharedPoolErr = RunMigrations(ctx, sharedPool)
		}
	})
	if sharedPoolErr != nil {
		t.Fatalf("failed to set up test database: %v", sharedPoolErr)
	}

	return sharedPool
}

// TestTx opens a transaction on the shared pool and rolls it back when the
// test ends, so ledger rows never leak between tests.
//
//	store := repository.NewLedgerStore(database.TestTx(t))
func TestTx(t *testing.T) PGXDB {
	t.Helper()

	tx, err := TestPool(t).Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	t.Cleanup(func() {
		_ = tx.Rollback(context.Background())
	})

	return tx
}

// ResetLedger empties both ledger tables and restarts their ids.
func ResetLedger(t *testing.T, db PGXDB) {
	t.Helper()

	_, err := db.Exec(context.Background(),
		"TRUNCATE TABLE ledger_expenses, custom_categories RESTART IDENTITY")
	if err != nil {
		t.Fatalf("failed to reset ledger tables: %v", err)
	}
}
