package database

import (
	"context"
	"fmt"
)

// RunMigrations creates the ledger schema.
func RunMigrations(ctx context.Context, db PGXDB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS ledger_expenses (
			id BIGSERIAL PRIMARY KEY,
			expense_date DATE NOT NULL,
			amount NUMERIC NOT NULL,
			description TEXT NOT NULL,
			category TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Amounts are stored at the scale the user typed.
		`ALTER TABLE ledger_expenses ALTER COLUMN amount TYPE NUMERIC`,

		`CREATE INDEX IF NOT EXISTS idx_ledger_expenses_date ON ledger_expenses(expense_date)`,

		// Names are not unique: repeated registrations are kept as separate rows.
		`CREATE TABLE IF NOT EXISTS custom_categories (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
