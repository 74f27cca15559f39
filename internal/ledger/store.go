// Package ledger provides access to the external expense ledger and the
// background queue that writes completed expenses to it.
package ledger

import (
	"context"
	"errors"

	"gitlab.com/yelinaung/ledger-chat/internal/models"
)

var (
	// ErrReadFailed indicates a list or category fetch against the ledger failed.
	ErrReadFailed = errors.New("ledger read failed")
	// ErrWriteFailed indicates an append or category save against the ledger failed.
	ErrWriteFailed = errors.New("ledger write failed")
)

// Appender appends completed expenses to the ledger.
type Appender interface {
	AppendExpense(ctx context.Context, e models.Expense) error
}

// Lister lists every ledger row in ledger order.
type Lister interface {
	ListExpenses(ctx context.Context) ([]models.LedgerRow, error)
}

// CategoryStore is the side-table of user-registered categories.
// CustomCategories returns entries in the order the ledger holds them.
type CategoryStore interface {
	CustomCategories(ctx context.Context) ([]models.CustomCategory, error)
	SaveCustomCategory(ctx context.Context, name string) error
}

// Store is the full ledger contract every backend implements.
type Store interface {
	Appender
	Lister
	CategoryStore
}
