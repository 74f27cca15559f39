package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gitlab.com/yelinaung/ledger-chat/internal/models"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the ledger in process memory. It backs local runs and tests.
type MemoryStore struct {
	mu sync.RWMutex

	rows    []models.LedgerRow
	customs []models.CustomCategory

	// AppendError allows simulating append failures.
	AppendError error
	// ListError allows simulating list failures.
	ListError error
	// CategoriesError allows simulating category fetch failures.
	CategoriesError error
	// SaveError allows simulating category save failures.
	SaveError error

	appendCalls     int
	categoriesCalls int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AppendExpense records e as a canonical row.
func (m *MemoryStore) AppendExpense(_ context.Context, e models.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appendCalls++
	if m.AppendError != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, m.AppendError)
	}

	m.rows = append(m.rows, models.LedgerRow{
		Date:        e.FormattedDate(),
		Amount:      e.Amount.String(),
		Description: e.Description,
		Category:    e.Category,
	})
	return nil
}

// ListExpenses returns a copy of all rows.
func (m *MemoryStore) ListExpenses(_ context.Context) ([]models.LedgerRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListError != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, m.ListError)
	}
	out := make([]models.LedgerRow, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

// CustomCategories returns custom categories in registration order.
func (m *MemoryStore) CustomCategories(_ context.Context) ([]models.CustomCategory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.categoriesCalls++
	if m.CategoriesError != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, m.CategoriesError)
	}
	out := make([]models.CustomCategory, len(m.customs))
	copy(out, m.customs)
	return out, nil
}

// SaveCustomCategory appends name without deduplication.
func (m *MemoryStore) SaveCustomCategory(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveError != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, m.SaveError)
	}
	m.customs = append(m.customs, models.CustomCategory{
		Name: name,
		Meta: map[string]any{"created_at": time.Now().UTC().Format(time.RFC3339)},
	})
	return nil
}

// AddRow seeds a raw row, bypassing validation.
func (m *MemoryStore) AddRow(row models.LedgerRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, row)
}

// Rows returns a copy of the stored rows.
func (m *MemoryStore) Rows() []models.LedgerRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.LedgerRow, len(m.rows))
	copy(out, m.rows)
	return out
}

// AppendCalls returns how many appends were attempted.
func (m *MemoryStore) AppendCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.appendCalls
}

// CategoriesCalls returns how many custom category fetches were attempted.
func (m *MemoryStore) CategoriesCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.categoriesCalls
}

// SetErrors updates the simulated failures under the store lock.
func (m *MemoryStore) SetErrors(appendErr, listErr, categoriesErr, saveErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendError = appendErr
	m.ListError = listErr
	m.CategoriesError = categoriesErr
	m.SaveError = saveErr
}
