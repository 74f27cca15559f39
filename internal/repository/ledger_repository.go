// Package repository provides database access for domain entities.
package repository

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/yelinaung/ledger-chat/internal/database"
	"gitlab.com/yelinaung/ledger-chat/internal/ledger"
	"gitlab.com/yelinaung/ledger-chat/internal/models"
)

// Ensure LedgerStore implements the ledger contract.
var _ ledger.Store = (*LedgerStore)(nil)

// LedgerStore keeps the ledger in PostgreSQL.
type LedgerStore struct {
	db database.PGXDB
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(db database.PGXDB) *LedgerStore {
	return &LedgerStore{db: db}
}

// AppendExpense inserts a completed expense.
func (r *LedgerStore) AppendExpense(ctx context.Context, e models.Expense) error {
	if !e.IsComplete() {
		return fmt.Errorf("%w: expense is incomplete", ledger.ErrWriteFailed)
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO ledger_expenses (expense_date, amount, description, category)
		VALUES ($1, $2::numeric, $3, $4)
	`, e.Date, e.Amount.String(), e.Description, e.Category)
	if err != nil {
		return fmt.Errorf("%w: failed to insert expense: %w", ledger.ErrWriteFailed, err)
	}
	return nil
}

// ListExpenses returns every row in insertion order.
func (r *LedgerStore) ListExpenses(ctx context.Context) ([]models.LedgerRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT to_char(expense_date, 'DD-MM-YYYY'), amount::text, description, category
		FROM ledger_expenses
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query expenses: %w", ledger.ErrReadFailed, err)
	}
	defer rows.Close()

	var out []models.LedgerRow
	for rows.Next() {
		var row models.LedgerRow
		if err := rows.Scan(&row.Date, &row.Amount, &row.Description, &row.Category); err != nil {
			return nil, fmt.Errorf("%w: failed to scan expense: %w", ledger.ErrReadFailed, err)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating expenses: %w", ledger.ErrReadFailed, err)
	}
	return out, nil
}

// CustomCategories returns registered categories in registration order.
func (r *LedgerStore) CustomCategories(ctx context.Context) ([]models.CustomCategory, error) {
	rows, err := r.db.Query(ctx, `
		SELECT name, created_at FROM custom_categories ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query custom categories: %w", ledger.ErrReadFailed, err)
	}
	defer rows.Close()

	var out []models.CustomCategory
	for rows.Next() {
		var (
			name      string
			createdAt time.Time
		)
		if err := rows.Scan(&name, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan custom category: %w", ledger.ErrReadFailed, err)
		}
		out = append(out, models.CustomCategory{
			Name: name,
			Meta: map[string]any{"created_at": createdAt.UTC().Format(time.RFC3339)},
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating custom categories: %w", ledger.ErrReadFailed, err)
	}
	return out, nil
}

// SaveCustomCategory records a category name.
func (r *LedgerStore) SaveCustomCategory(ctx context.Context, name string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO custom_categories (name) VALUES ($1)
	`, name)
	if err != nil {
		return fmt.Errorf("%w: failed to save custom category: %w", ledger.ErrWriteFailed, err)
	}
	return nil
}
