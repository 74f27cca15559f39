// Package models defines the domain entities for the conversational ledger.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical DD-MM-YYYY form used on the wire and in replies.
const DateLayout = "02-01-2006"

// MinCategoryNameLength is the shortest accepted custom category name, after trimming.
const MinCategoryNameLength = 2

// MaxCategoryNameLength is the maximum allowed length for category names.
const MaxCategoryNameLength = 50

// OtherCategory is the placeholder slot that asks the user for a custom name.
const OtherCategory = "Other"

// FixedCategories is the built-in category set in menu order.
var FixedCategories = []string{
	"Cable",
	"Labour",
	"Material Purchase",
	"Fuel",
}

// Expense is a completed ledger entry.
type Expense struct {
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Category    string
}

// FormattedDate returns the expense date in canonical form.
func (e Expense) FormattedDate() string {
	return e.Date.Format(DateLayout)
}

// IsComplete reports whether every field is present and the category is concrete.
func (e Expense) IsComplete() bool {
	return !e.Date.IsZero() &&
		e.Amount.IsPositive() &&
		e.Description != "" &&
		e.Category != "" &&
		e.Category != OtherCategory
}

// CategoryKind tags how far a category field has been resolved.
type CategoryKind int

const (
	// CategoryConcrete carries a real category name.
	CategoryConcrete CategoryKind = iota
	// CategoryUncertain means the classifier could not decide.
	CategoryUncertain
	// CategoryOther means none of the known categories fit and the user must name one.
	CategoryOther
)

// String implements fmt.Stringer.
func (k CategoryKind) String() string {
	switch k {
	case CategoryConcrete:
		return "concrete"
	case CategoryUncertain:
		return "uncertain"
	case CategoryOther:
		return "other"
	default:
		return "unknown"
	}
}

// CategoryChoice is a category field that may not be resolved yet.
type CategoryChoice struct {
	Kind CategoryKind
	Name string
}

// Concrete returns a resolved choice for name.
func Concrete(name string) CategoryChoice {
	return CategoryChoice{Kind: CategoryConcrete, Name: name}
}

// Uncertain returns an unresolved choice.
func Uncertain() CategoryChoice {
	return CategoryChoice{Kind: CategoryUncertain}
}

// Other returns the choice that requires a custom name.
func Other() CategoryChoice {
	return CategoryChoice{Kind: CategoryOther}
}

// IsConcrete reports whether the choice carries a usable category name.
func (c CategoryChoice) IsConcrete() bool {
	return c.Kind == CategoryConcrete && c.Name != ""
}

// Extraction is the typed result of understanding a free-text message.
// A zero Date means the message did not name a day.
type Extraction struct {
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Category    CategoryChoice
}

// HasDate reports whether a date was extracted.
func (e Extraction) HasDate() bool {
	return !e.Date.IsZero()
}

// IsUsable reports whether the extraction carries the fields a session needs.
func (e Extraction) IsUsable() bool {
	return e.Amount.IsPositive() && e.Description != ""
}

// CustomCategory is a user-registered category as returned by the ledger side-table.
type CustomCategory struct {
	Name string
	Meta map[string]any
}

// LedgerRow is a row as listed from the ledger, kept verbatim.
type LedgerRow struct {
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Category    string `json:"category"`
}
